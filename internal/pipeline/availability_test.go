package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailability_Lifecycle(t *testing.T) {
	var a Availability

	down, reason := a.Unavailable()
	assert.False(t, down)
	assert.NoError(t, reason)

	first := errors.New("session creation failed")
	a.MarkUnavailable(first)

	down, reason = a.Unavailable()
	assert.True(t, down)
	assert.Equal(t, first, reason)
}

func TestAvailability_FirstReasonWins(t *testing.T) {
	var a Availability

	first := errors.New("first failure")
	a.MarkUnavailable(first)
	a.MarkUnavailable(errors.New("later failure"))

	down, reason := a.Unavailable()
	assert.True(t, down)
	assert.Equal(t, first, reason)
}

func TestAvailability_Reset(t *testing.T) {
	var a Availability

	a.MarkUnavailable(errors.New("boom"))
	a.Reset()

	down, reason := a.Unavailable()
	assert.False(t, down)
	assert.NoError(t, reason)

	// Reset allows a new reason to be recorded.
	second := errors.New("second failure")
	a.MarkUnavailable(second)
	down, reason = a.Unavailable()
	assert.True(t, down)
	assert.Equal(t, second, reason)
}
