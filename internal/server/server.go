package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/IvanShishkin/buckfinder/internal/server/api"
	"github.com/IvanShishkin/buckfinder/pkg/models"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Scanner is the scan surface exposed over HTTP
type Scanner interface {
	StartScan(folder string) (models.ScanStart, error)
	GetProgress() models.ScanProgress
	Cancel() bool
}

// Saver copies selected images into a destination folder
type Saver interface {
	Save(dest string, paths []string) (*models.ExportResult, error)
}

// Server serves the scan API to a local front end
type Server struct {
	scanner Scanner
	saver   Saver
	model   string
	logger  *zap.Logger
}

func New(scanner Scanner, saver Saver, model string, logger *zap.Logger) *Server {
	return &Server{
		scanner: scanner,
		saver:   saver,
		model:   model,
		logger:  logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	handleAPIMethod(mux, "/api/scan_folder", http.MethodPost, maxBodyBytes, s.scanFolderAPI)
	handleAPIMethod(mux, "/api/save_selected_bucks", http.MethodPost, maxBodyBytes, s.saveSelectedAPI)

	mux.HandleFunc("/api/scan_progress", api.WrapMethod(http.MethodGet, s.scanProgressAPI))
	mux.HandleFunc("/api/scan_cancel", api.WrapMethod(http.MethodPost, s.scanCancelAPI))
	mux.HandleFunc("/api/health", api.WrapMethod(http.MethodGet, s.healthAPI))

	return mux
}

func handleAPIMethod(mux *http.ServeMux, path, method string, maxBytes int64, h api.Handler) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		api.WrapMethod(method, h)(w, r)
	})
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.logRequests(s.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("API server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("API request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}
