package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscale_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Enhancement metrics
	upscaleRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_requests_total",
			Help: "Total number of enhancement requests",
		},
		[]string{"transport", "status"}, // transport: http, websocket
	)

	upscaleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upscale_processing_duration_seconds",
			Help:    "Enhancement processing duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"transport"},
	)

	upscaleOutputPixels = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upscale_output_pixels",
			Help:    "Output image size in pixels",
			Buckets: []float64{250_000, 1_000_000, 4_000_000, 8_000_000, 16_000_000, 25_000_000},
		},
	)

	fallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upscale_fallback_total",
			Help: "Number of requests served by the classical fallback path",
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"},
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "upscale_upload_size_bytes",
			Help: "Size of uploaded files in bytes",
			Buckets: []float64{
				1024, 10 * 1024, 100 * 1024, 1024 * 1024,
				10 * 1024 * 1024, 50 * 1024 * 1024,
			},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "upscale_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upscale_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
