package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MeKo-Tech/upscale/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for image upscaling",
	Long: `Start an HTTP server that exposes the enhancement pipeline.

Endpoints:
  POST /api/upscale  multipart image upload, returns the enlarged image
  GET  /ws           websocket upload with streamed progress
  GET  /models       model registry with availability
  GET  /health       health check
  GET  /metrics      Prometheus metrics`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}
	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	maxUploadMB := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-mb") {
		maxUploadMB, _ = cmd.Flags().GetInt("max-upload-mb")
	}
	timeoutSec := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeoutSec, _ = cmd.Flags().GetInt("timeout")
	}

	if cmd.Flags().Changed("model") {
		cfg.Pipeline.Model, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("gpu") {
		cfg.GPU.Enabled, _ = cmd.Flags().GetBool("gpu")
	}
	if cmd.Flags().Changed("warmup") {
		cfg.Pipeline.Warmup, _ = cmd.Flags().GetBool("warmup")
	}

	requestsPerMinute, _ := cmd.Flags().GetInt("rate-limit-per-minute")
	requestsPerHour, _ := cmd.Flags().GetInt("rate-limit-per-hour")
	maxRequestsPerDay, _ := cmd.Flags().GetInt("quota-requests-per-day")
	maxDataPerDay, _ := cmd.Flags().GetInt64("quota-data-per-day")

	serverConfig := server.Config{
		Host:              host,
		Port:              port,
		CORSOrigin:        corsOrigin,
		MaxUploadMB:       int64(maxUploadMB),
		TimeoutSec:        timeoutSec,
		PipelineConfig:    cfg.ToPipelineConfig(),
		RequestsPerMinute: requestsPerMinute,
		RequestsPerHour:   requestsPerHour,
		MaxRequestsPerDay: maxRequestsPerDay,
		MaxDataPerDay:     maxDataPerDay,
	}

	srv, err := server.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if cerr := srv.Close(); cerr != nil {
			slog.Warn("failed to close server", "error", cerr)
		}
	}()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("starting upscale server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "host to bind the server to")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().String("cors-origin", "*", "allowed CORS origin")
	serveCmd.Flags().Int("max-upload-mb", 50, "maximum upload size in megabytes")
	serveCmd.Flags().Int("timeout", 120, "per-request processing timeout in seconds")
	serveCmd.Flags().StringP("model", "m", "", "model to use for enlargement")
	serveCmd.Flags().Bool("gpu", false, "use GPU acceleration if available")
	serveCmd.Flags().Bool("warmup", false, "run a warmup inference at startup")
	serveCmd.Flags().Int("rate-limit-per-minute", 0, "requests per client per minute (0 = unlimited)")
	serveCmd.Flags().Int("rate-limit-per-hour", 0, "requests per client per hour (0 = unlimited)")
	serveCmd.Flags().Int("quota-requests-per-day", 0, "requests per client per day (0 = unlimited)")
	serveCmd.Flags().Int64("quota-data-per-day", 0, "upload bytes per client per day (0 = unlimited)")
}
