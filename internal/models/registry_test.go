package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_BuiltIns(t *testing.T) {
	tests := []struct {
		name      string
		scale     int
		inputSize int
		norm      Range
	}{
		{RealESRGANx4, 4, 128, Unit},
		{RealESRGANx4Anime, 4, 128, Unit},
		{RealESRGeneralx4v3, 4, 128, Unit},
		{RealESRGANx2, 2, 192, Unit},
		{ESRGANLegacyx4, 4, 128, Symmetric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.scale, d.Scale)
			assert.Equal(t, tt.inputSize, d.InputSize)
			assert.Equal(t, tt.norm, d.Normalization)
			assert.Equal(t, tt.inputSize*tt.scale, d.OutputSize())
			require.NoError(t, d.Validate())
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("waifu2x-cunet")
	assert.False(t, ok)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
	}{
		{"empty name", Descriptor{Filename: "a.onnx", Scale: 4, InputSize: 128, Channels: 3, Normalization: Unit}},
		{"empty filename", Descriptor{Name: "x", Scale: 4, InputSize: 128, Channels: 3, Normalization: Unit}},
		{"scale too small", Descriptor{Name: "x", Filename: "a.onnx", Scale: 1, InputSize: 128, Channels: 3, Normalization: Unit}},
		{"scale too large", Descriptor{Name: "x", Filename: "a.onnx", Scale: 8, InputSize: 128, Channels: 3, Normalization: Unit}},
		{"bad input size", Descriptor{Name: "x", Filename: "a.onnx", Scale: 4, InputSize: 0, Channels: 3, Normalization: Unit}},
		{"bad channels", Descriptor{Name: "x", Filename: "a.onnx", Scale: 4, InputSize: 128, Channels: 4, Normalization: Unit}},
		{"empty range", Descriptor{Name: "x", Filename: "a.onnx", Scale: 4, InputSize: 128, Channels: 3, Normalization: Range{Lo: 1, Hi: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Register(tt.d))
		})
	}
}

func TestRegister_AndList(t *testing.T) {
	d := Descriptor{
		Name:          "test-x2",
		Filename:      "test_x2.onnx",
		Description:   "test model",
		Scale:         2,
		InputSize:     64,
		Channels:      3,
		Normalization: Unit,
	}
	require.NoError(t, Register(d))

	got, ok := Lookup("test-x2")
	require.True(t, ok)
	assert.Equal(t, d, got)

	list := List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name, "List must be sorted by name")
	}
}
