package upscaler

import (
	"image/color"
	"testing"

	"github.com/MeKo-Tech/upscale/internal/mempool"
	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor(inputSize, scale int, norm models.Range) models.Descriptor {
	return models.Descriptor{
		Name:          "test",
		Filename:      "test.onnx",
		Scale:         scale,
		InputSize:     inputSize,
		Channels:      3,
		Normalization: norm,
	}
}

func TestEncodeTile_NilImage(t *testing.T) {
	_, err := EncodeTile(nil, testDescriptor(8, 2, models.Unit))
	assert.Error(t, err)
}

func TestEncodeTile_UniformUnitRange(t *testing.T) {
	d := testDescriptor(8, 2, models.Unit)
	tile := imaging.New(8, 8, color.NRGBA{R: 255, G: 0, B: 128, A: 255})

	tensor, err := EncodeTile(tile, d)
	require.NoError(t, err)
	defer mempool.PutFloat32(tensor.Data)

	require.Equal(t, []int64{1, 3, 8, 8}, tensor.Shape)
	require.Len(t, tensor.Data, 3*8*8)

	plane := 8 * 8
	for i := 0; i < plane; i++ {
		assert.InDelta(t, 1.0, tensor.Data[i], 1e-6, "R channel at %d", i)
		assert.InDelta(t, 0.0, tensor.Data[plane+i], 1e-6, "G channel at %d", i)
		assert.InDelta(t, 128.0/255.0, tensor.Data[2*plane+i], 1e-6, "B channel at %d", i)
	}
}

func TestEncodeTile_UniformSymmetricRange(t *testing.T) {
	d := testDescriptor(8, 4, models.Symmetric)
	tile := imaging.New(8, 8, color.NRGBA{R: 128, G: 0, B: 255, A: 255})

	tensor, err := EncodeTile(tile, d)
	require.NoError(t, err)
	defer mempool.PutFloat32(tensor.Data)

	plane := 8 * 8
	assert.InDelta(t, 128.0/255.0*2-1, tensor.Data[0], 1e-6)
	assert.InDelta(t, -1.0, tensor.Data[plane], 1e-6)
	assert.InDelta(t, 1.0, tensor.Data[2*plane], 1e-6)
}

func TestEncodeTile_ResizesToInputShape(t *testing.T) {
	d := testDescriptor(16, 2, models.Unit)
	// Edge tiles are rarely square; the encoder must still produce the
	// model's fixed input shape.
	tile := imaging.New(100, 37, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	tensor, err := EncodeTile(tile, d)
	require.NoError(t, err)
	defer mempool.PutFloat32(tensor.Data)

	assert.Equal(t, []int64{1, 3, 16, 16}, tensor.Shape)
	assert.Len(t, tensor.Data, 3*16*16)
}

func TestEncodeTile_NCHWLayout(t *testing.T) {
	d := testDescriptor(8, 2, models.Unit)
	// Top-left quadrant red, rest black. Corners survive resampling.
	tile := imaging.New(8, 8, color.NRGBA{A: 255})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			tile.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}

	tensor, err := EncodeTile(tile, d)
	require.NoError(t, err)
	defer mempool.PutFloat32(tensor.Data)

	plane := 8 * 8
	assert.InDelta(t, 1.0, tensor.Data[0], 0.05, "R at (0,0)")
	assert.InDelta(t, 0.0, tensor.Data[7*8+7], 0.05, "R at (7,7)")
	assert.InDelta(t, 0.0, tensor.Data[plane], 0.05, "G at (0,0)")
	assert.InDelta(t, 0.0, tensor.Data[2*plane], 0.05, "B at (0,0)")
}

func TestEncodeTile_InvalidDescriptor(t *testing.T) {
	tile := imaging.New(8, 8, color.NRGBA{A: 255})
	bad := testDescriptor(8, 2, models.Unit)
	bad.Scale = 9
	_, err := EncodeTile(tile, bad)
	assert.Error(t, err)
}
