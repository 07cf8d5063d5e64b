package server

import (
	"encoding/json"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records messages written to it.
type fakeConn struct {
	messages [][]byte
	err      error
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if f.err != nil {
		return f.err
	}
	if messageType == websocket.TextMessage {
		f.messages = append(f.messages, data)
	}
	return nil
}

func TestSendWebSocketResponse(t *testing.T) {
	s := newTestServer(&stubEnhancer{})
	conn := &fakeConn{}

	s.sendWebSocketResponse(conn, UpscaleResponse{
		Type:     "progress",
		Status:   "processing",
		Fraction: 0.42,
		Stage:    "tiles",
	})

	require.Len(t, conn.messages, 1)

	var resp UpscaleResponse
	require.NoError(t, json.Unmarshal(conn.messages[0], &resp))
	assert.Equal(t, "progress", resp.Type)
	assert.InDelta(t, 0.42, resp.Fraction, 1e-9)
	assert.Equal(t, "tiles", resp.Stage)
}

func TestSendWebSocketError(t *testing.T) {
	s := newTestServer(&stubEnhancer{})
	conn := &fakeConn{}

	s.sendWebSocketError(conn, "invalid_request", "no image data")

	require.Len(t, conn.messages, 1)

	var resp UpscaleResponse
	require.NoError(t, json.Unmarshal(conn.messages[0], &resp))
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "invalid_request", resp.ErrorType)
	assert.Equal(t, "no image data", resp.Error)
}

func TestSendWebSocketResponse_WriteFailure(t *testing.T) {
	s := newTestServer(&stubEnhancer{})
	conn := &fakeConn{err: assert.AnError}

	// Must not panic when the connection is gone.
	s.sendWebSocketResponse(conn, UpscaleResponse{Type: "progress"})
	assert.Empty(t, conn.messages)
}

func TestUpscaleRequest_JSONImageIsBase64(t *testing.T) {
	raw := `{"image":"aGVsbG8=","format":"png"}`

	var req UpscaleRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.Equal(t, []byte("hello"), req.Image)
	assert.Equal(t, "png", req.Format)
}
