package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/MeKo-Tech/upscale/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFallbackPipeline builds a pipeline whose models directory is empty,
// so every request takes the classical fallback path.
func newFallbackPipeline(t *testing.T, opts ...func(*Builder)) *Pipeline {
	t.Helper()
	b := NewBuilder().WithModelsDir(t.TempDir())
	for _, opt := range opts {
		opt(b)
	}
	p, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProcess_FallbackWhenModelMissing(t *testing.T) {
	p := newFallbackPipeline(t)
	img := testutil.GradientImage(120, 80)

	result, err := p.Process(context.Background(), img)
	require.NoError(t, err)

	assert.True(t, result.UsedFallback)
	assert.Zero(t, result.TileCount)
	assert.Equal(t, p.Scale(), result.Scale)
	assert.Equal(t, 120*p.Scale(), result.Image.Bounds().Dx())
	assert.Equal(t, 80*p.Scale(), result.Image.Bounds().Dy())
}

func TestProcess_FallbackDeterministic(t *testing.T) {
	p := newFallbackPipeline(t)
	img := testutil.GradientImage(64, 48)

	first, err := p.Process(context.Background(), img)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), img)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Image.Pix, second.Image.Pix))
}

func TestProcess_DisableFallback(t *testing.T) {
	p := newFallbackPipeline(t, func(b *Builder) {
		b.WithFallbackDisabled(true)
	})

	_, err := p.Process(context.Background(), testutil.GradientImage(32, 32))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelMissing)
}

func TestProcess_ImageTooLarge(t *testing.T) {
	p := newFallbackPipeline(t, func(b *Builder) {
		b.WithMaxOutputPixels(1599)
	})

	// 10x10 at 4x is 1600 output pixels, one over the ceiling.
	_, err := p.Process(context.Background(), testutil.GradientImage(10, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestProcess_ExactCeilingAccepted(t *testing.T) {
	p := newFallbackPipeline(t, func(b *Builder) {
		b.WithMaxOutputPixels(1600)
	})

	result, err := p.Process(context.Background(), testutil.GradientImage(10, 10))
	require.NoError(t, err)
	assert.Equal(t, 40, result.Image.Bounds().Dx())
	assert.Equal(t, 40, result.Image.Bounds().Dy())
}

func TestProcess_NilImage(t *testing.T) {
	p := newFallbackPipeline(t)

	_, err := p.Process(context.Background(), nil)
	assert.Error(t, err)
}

func TestProcess_CanceledContext(t *testing.T) {
	p := newFallbackPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, testutil.GradientImage(32, 32))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_ProgressMonotonic(t *testing.T) {
	type update struct {
		fraction float64
		stage    string
	}
	var updates []update

	p := newFallbackPipeline(t, func(b *Builder) {
		b.WithProgress(func(fraction float64, stage string) {
			updates = append(updates, update{fraction, stage})
		})
	})

	_, err := p.Process(context.Background(), testutil.GradientImage(48, 48))
	require.NoError(t, err)
	require.NotEmpty(t, updates)

	prev := -1.0
	for _, u := range updates {
		assert.GreaterOrEqual(t, u.fraction, prev, "stage %s", u.stage)
		assert.GreaterOrEqual(t, u.fraction, 0.0)
		assert.LessOrEqual(t, u.fraction, 1.0)
		prev = u.fraction
	}

	assert.Equal(t, StageStart, updates[0].stage)
	last := updates[len(updates)-1]
	assert.Equal(t, StageDone, last.stage)
	assert.Equal(t, 1.0, last.fraction)

	stages := make(map[string]bool)
	for _, u := range updates {
		stages[u.stage] = true
	}
	assert.True(t, stages[StageFallback])
}
