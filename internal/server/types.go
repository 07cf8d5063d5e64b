// Package server exposes the enhancement pipeline over HTTP and
// WebSocket, with Prometheus metrics and per-client rate limiting.
package server

import (
	"context"
	"image"
	"net/http"

	"github.com/MeKo-Tech/upscale/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// enhancer defines the methods the server needs from a pipeline.
type enhancer interface {
	Process(ctx context.Context, img image.Image) (*pipeline.Result, error)
	ProcessWithProgress(ctx context.Context, img image.Image, progress pipeline.ProgressFunc) (*pipeline.Result, error)
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    enhancer
	modelsDir   string
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	jpegQuality int
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config

	// Optional rate limiting; zero values disable it.
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ModelInfo struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Scale       int    `json:"scale"`
	InputSize   int    `json:"input_size"`
	Description string `json:"description,omitempty"`
	Available   bool   `json:"available"`
}

type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewServer creates a new enhancement server instance.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}

	s := &Server{
		pipeline:    pl,
		modelsDir:   config.PipelineConfig.ModelsDir,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		jpegQuality: config.PipelineConfig.JPEGQuality,
	}

	if config.RequestsPerMinute > 0 || config.RequestsPerHour > 0 ||
		config.MaxRequestsPerDay > 0 || config.MaxDataPerDay > 0 {
		s.rateLimiter = NewRateLimiter(config.RequestsPerMinute, config.RequestsPerHour,
			config.MaxRequestsPerDay, config.MaxDataPerDay)
	}

	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/api/upscale", s.corsMiddleware(s.rateLimitMiddleware(s.upscaleHandler)))
	mux.HandleFunc("/ws", s.upscaleWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}
