package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	assert.Equal(t, 1024, sizeClass(1))
	assert.Equal(t, 1024, sizeClass(1024))
	assert.Equal(t, 2048, sizeClass(1025))
	assert.Equal(t, 50176, sizeClass(3*128*128))
}

func TestGetPutFloat32(t *testing.T) {
	buf := GetFloat32(3 * 128 * 128)
	assert.Len(t, buf, 3*128*128)
	assert.GreaterOrEqual(t, cap(buf), 3*128*128)
	PutFloat32(buf)

	again := GetFloat32(3 * 128 * 128)
	assert.Len(t, again, 3*128*128)
	PutFloat32(again)

	// Nil is a no-op.
	PutFloat32(nil)
}

func TestGetPutUint8(t *testing.T) {
	buf := GetUint8(512 * 512 * 4)
	assert.Len(t, buf, 512*512*4)
	PutUint8(buf)
	PutUint8(nil)
}

func TestGetFloat32_SmallRequests(t *testing.T) {
	a := GetFloat32(10)
	assert.Len(t, a, 10)
	assert.GreaterOrEqual(t, cap(a), 1024)
	PutFloat32(a)
}
