package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/upscale/internal/pipeline"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are deferred to the CORS configuration of the
		// deployment; the socket itself accepts any origin.
		return true
	},
}

// progressInterval throttles streamed progress updates.
const progressInterval = 100 * time.Millisecond

// UpscaleRequest is an enhancement request sent over WebSocket. Image
// holds the encoded input bytes (base64 in the JSON wire form).
type UpscaleRequest struct {
	Image  []byte `json:"image"`
	Format string `json:"format,omitempty"`
}

// UpscaleResponse is a message streamed back over WebSocket. Progress
// updates carry Fraction and Stage; the final message carries the
// enhanced image.
type UpscaleResponse struct {
	Type      string  `json:"type"`   // "progress", "completed", "error"
	Status    string  `json:"status"` // "processing", "completed", "error"
	Fraction  float64 `json:"fraction,omitempty"`
	Stage     string  `json:"stage,omitempty"`
	Image     string  `json:"image,omitempty"` // base64-encoded output
	Format    string  `json:"format,omitempty"`
	Model     string  `json:"model,omitempty"`
	Scale     int     `json:"scale,omitempty"`
	Fallback  bool    `json:"fallback,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// wsConnWriter is the subset of *websocket.Conn the senders need.
type wsConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// upscaleWebSocketHandler streams enhancement progress over a WebSocket
// connection, then delivers the result on the same socket.
func (s *Server) upscaleWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r, conn)
}

// handleWebSocketConnection processes messages from one connection.
func (s *Server) handleWebSocketConnection(r *http.Request, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Keep the connection alive across long enhancements.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{},
					time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(r, conn, data)
		}
	}
}

// handleWebSocketMessage runs one enhancement request.
func (s *Server) handleWebSocketMessage(r *http.Request, conn *websocket.Conn, data []byte) {
	var req UpscaleRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided")
		return
	}
	if int64(len(req.Image)) > s.maxUploadMB*1024*1024 {
		s.sendWebSocketError(conn, "invalid_request", "Image too large")
		return
	}
	uploadSizeBytes.Observe(float64(len(req.Image)))

	img, srcFormat, err := pipeline.DecodeBytes(req.Image)
	if err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to decode image: %v", err))
		return
	}

	// Reading is paused while this request runs, so progress writes do
	// not race with other writers on the connection.
	progress := pipeline.Throttled(func(fraction float64, stage string) {
		s.sendWebSocketResponse(conn, UpscaleResponse{
			Type:      "progress",
			Status:    "processing",
			Fraction:  fraction,
			Stage:     stage,
			RequestID: requestID,
		})
	}, progressInterval)

	start := time.Now()
	result, err := s.pipeline.ProcessWithProgress(r.Context(), img, progress)
	if err != nil {
		upscaleRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Enhancement failed: %v", err))
		return
	}

	upscaleRequestsTotal.WithLabelValues("websocket", "success").Inc()
	upscaleDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	if result.UsedFallback {
		fallbackTotal.Inc()
	}

	format := req.Format
	if format == "" {
		format = srcFormat
	}

	var encoded bytes.Buffer
	if err := pipeline.EncodeTo(&encoded, result.Image, format, s.jpegQuality); err != nil {
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Failed to encode result: %v", err))
		return
	}

	s.sendWebSocketResponse(conn, UpscaleResponse{
		Type:      "completed",
		Status:    "completed",
		Fraction:  1.0,
		Image:     base64.StdEncoding.EncodeToString(encoded.Bytes()),
		Format:    format,
		Model:     result.Model,
		Scale:     result.Scale,
		Fallback:  result.UsedFallback,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn wsConnWriter, response UpscaleResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn wsConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, UpscaleResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	})
}
