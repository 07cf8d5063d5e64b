package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/MeKo-Tech/upscale/internal/pipeline"
	"github.com/MeKo-Tech/upscale/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// modelsHandler returns the registered model families and whether their
// artifacts are present on disk.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	descriptors := models.List()
	modelList := make([]ModelInfo, len(descriptors))
	for i, d := range descriptors {
		path := models.ResolveModelPath(s.modelsDir, d)
		modelList[i] = ModelInfo{
			Name:        d.Name,
			Filename:    d.Filename,
			Scale:       d.Scale,
			InputSize:   d.InputSize,
			Description: d.Description,
			Available:   models.ValidateModelExists(path) == nil,
		}
	}

	response := ModelsResponse{
		Models: modelList,
		Count:  len(modelList),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding models response: %v\n", err)
	}
}

// upscaleHandler processes image enhancement requests. The enlarged
// image is returned directly as the response body.
func (s *Server) upscaleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	img, srcFormat, err := pipeline.DecodeBytes(imageData)
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	if s.pipeline == nil {
		s.writeErrorResponse(w, "Enhancement pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result, err := s.pipeline.Process(ctx, img)
	if err != nil {
		upscaleRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Enhancement failed: %v", err), errorStatus(err))
		return
	}

	upscaleRequestsTotal.WithLabelValues("http", "success").Inc()
	upscaleDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())
	upscaleOutputPixels.Observe(float64(result.Image.Bounds().Dx() * result.Image.Bounds().Dy()))
	if result.UsedFallback {
		fallbackTotal.Inc()
	}

	// Output format: explicit 'format' wins, otherwise keep the upload's.
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		format = srcFormat
	}

	w.Header().Set("Content-Type", contentTypeFor(format))
	w.Header().Set("X-Upscale-Model", result.Model)
	w.Header().Set("X-Upscale-Scale", strconv.Itoa(result.Scale))
	w.Header().Set("X-Upscale-Fallback", strconv.FormatBool(result.UsedFallback))
	if err := pipeline.EncodeTo(w, result.Image, format, s.jpegQuality); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding upscale response: %v\n", err)
	}
}

// errorStatus maps pipeline error kinds to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrDecodeFailed):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrModelMissing),
		errors.Is(err, pipeline.ErrInferenceBackend):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// contentTypeFor returns the MIME type for an output format name.
func contentTypeFor(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "bmp":
		return "image/bmp"
	case "gif":
		return "image/gif"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "image/png"
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing error response: %v\n", err)
	}
}
