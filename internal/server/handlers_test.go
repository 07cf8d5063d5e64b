package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/upscale/internal/fallback"
	"github.com/MeKo-Tech/upscale/internal/models"
	"github.com/MeKo-Tech/upscale/internal/pipeline"
	"github.com/MeKo-Tech/upscale/internal/testutil"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEnhancer implements enhancer without a real inference session.
type stubEnhancer struct {
	err error
}

func (f *stubEnhancer) Process(ctx context.Context, img image.Image) (*pipeline.Result, error) {
	return f.ProcessWithProgress(ctx, img, nil)
}

func (f *stubEnhancer) ProcessWithProgress(
	_ context.Context, img image.Image, progress pipeline.ProgressFunc,
) (*pipeline.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil {
		progress(0.5, pipeline.StageTiles)
	}
	out, err := fallback.Upscale(img, 4)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(1.0, pipeline.StageDone)
	}
	return &pipeline.Result{
		Image:        out,
		Model:        "stub",
		Scale:        4,
		UsedFallback: true,
	}, nil
}

func (f *stubEnhancer) Close() error { return nil }

// newTestServer builds a server around a stub pipeline.
func newTestServer(enh enhancer) *Server {
	return &Server{
		pipeline:    enh,
		corsOrigin:  "*",
		maxUploadMB: 10,
		timeoutSec:  30,
		jpegQuality: 95,
	}
}

// multipartImage builds a multipart body with a PNG-encoded test image
// in the "image" field.
func multipartImage(t *testing.T, w, h int, extraFields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	img := testutil.Checkerboard(w, h, 4)
	var encoded bytes.Buffer
	require.NoError(t, imaging.Encode(&encoded, img, imaging.PNG))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "test.png")
	require.NoError(t, err)
	_, err = part.Write(encoded.Bytes())
	require.NoError(t, err)
	for k, v := range extraFields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	return &body, mw.FormDataContentType()
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(&stubEnhancer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubEnhancer{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestModelsHandler(t *testing.T) {
	s := newTestServer(&stubEnhancer{})
	s.modelsDir = t.TempDir()

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	rec := httptest.NewRecorder()
	s.modelsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, len(models.List()), resp.Count)
	require.NotEmpty(t, resp.Models)
	for _, m := range resp.Models {
		assert.NotEmpty(t, m.Name)
		assert.Positive(t, m.Scale)
		// models dir is empty, so nothing is available
		assert.False(t, m.Available)
	}
}

func TestUpscaleHandler(t *testing.T) {
	s := newTestServer(&stubEnhancer{})

	body, contentType := multipartImage(t, 20, 15, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/upscale", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.upscaleHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "stub", rec.Header().Get("X-Upscale-Model"))
	assert.Equal(t, "4", rec.Header().Get("X-Upscale-Scale"))
	assert.Equal(t, "true", rec.Header().Get("X-Upscale-Fallback"))

	out, _, err := pipeline.DecodeBytes(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 80, out.Bounds().Dx())
	assert.Equal(t, 60, out.Bounds().Dy())
}

func TestUpscaleHandler_FormatOverride(t *testing.T) {
	s := newTestServer(&stubEnhancer{})

	body, contentType := multipartImage(t, 8, 8, map[string]string{"format": "jpg"})
	req := httptest.NewRequest(http.MethodPost, "/api/upscale", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.upscaleHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
}

func TestUpscaleHandler_NoFile(t *testing.T) {
	s := newTestServer(&stubEnhancer{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upscale", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.upscaleHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpscaleHandler_InvalidImage(t *testing.T) {
	s := newTestServer(&stubEnhancer{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "junk.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("definitely not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upscale", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.upscaleHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpscaleHandler_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubEnhancer{})

	req := httptest.NewRequest(http.MethodGet, "/api/upscale", nil)
	rec := httptest.NewRecorder()
	s.upscaleHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUpscaleHandler_PipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "image too large", err: pipeline.ErrImageTooLarge, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "model missing", err: pipeline.ErrModelMissing, wantStatus: http.StatusServiceUnavailable},
		{name: "backend failed", err: pipeline.ErrInferenceBackend, wantStatus: http.StatusServiceUnavailable},
		{name: "other error", err: assert.AnError, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubEnhancer{err: tt.err})

			body, contentType := multipartImage(t, 8, 8, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/upscale", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			s.upscaleHandler(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"png", "image/png"},
		{"jpg", "image/jpeg"},
		{"jpeg", "image/jpeg"},
		{"bmp", "image/bmp"},
		{"tiff", "image/tiff"},
		{"", "image/png"},
		{"weird", "image/png"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, contentTypeFor(tt.format), "format %q", tt.format)
	}
}
