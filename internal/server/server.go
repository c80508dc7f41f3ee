// Package server exposes stored archives over HTTP by share code.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/repackr/internal/db"
	"github.com/jonathan/repackr/internal/server/ratelimit"
)

// FileStore looks up stored files by share code.
type FileStore interface {
	GetFile(ctx context.Context, code string) (*db.StoredFile, error)
}

// Config holds server configuration.
type Config struct {
	Addr string
	// FilesDir restricts served archives to this directory. Empty serves any stored path.
	FilesDir string
	// ShutdownTimeout bounds graceful shutdown. Defaults to 30s.
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	files       FileStore
	filesDir    string
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger
	shutdown    time.Duration
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,32}$`)

// FileInfo is the JSON body of GET /api/files/{code}.
type FileInfo struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Caption     string    `json:"caption,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url"`
}

// New creates a server. A nil limiter disables rate limiting.
func New(cfg Config, files FileStore, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter(&ratelimit.Config{Enabled: false})
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		files:       files,
		rateLimiter: limiter,
		logger:      logger,
		shutdown:    cfg.ShutdownTimeout,
	}
	if cfg.FilesDir != "" {
		if abs, err := filepath.Abs(cfg.FilesDir); err == nil {
			s.filesDir = abs
		} else {
			s.filesDir = filepath.Clean(cfg.FilesDir)
		}
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /f/{code}", s.handleDownload)
	mux.HandleFunc("GET /api/files/{code}", s.handleInfo)
	return s.withRateLimit(s.withLogging(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("share server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down share server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	file, path, err := s.resolve(r.Context(), code)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.errorResponse(w, &ErrFileGone{Code: code})
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.errorResponse(w, &ErrFileGone{Code: code})
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeContent(w, r, filepath.Base(path), file.CreatedAt, f)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	file, path, err := s.resolve(r.Context(), code)
	if err != nil {
		s.errorResponse(w, err)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.errorResponse(w, &ErrFileGone{Code: code})
		return
	}

	s.jsonResponse(w, http.StatusOK, FileInfo{
		Code:        file.Code,
		Name:        filepath.Base(path),
		Size:        info.Size(),
		Caption:     file.Caption,
		CreatedAt:   file.CreatedAt,
		DownloadURL: "/f/" + file.Code,
	})
}

// resolve looks up code and returns the stored file and its checked path.
func (s *Server) resolve(ctx context.Context, code string) (*db.StoredFile, string, error) {
	if !codePattern.MatchString(code) {
		return nil, "", &ErrInvalidCode{Code: code}
	}
	file, err := s.files.GetFile(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up %s: %w", code, err)
	}
	if file == nil {
		return nil, "", &ErrFileNotFound{Code: code}
	}

	path, err := s.servedPath(file.FileHandle)
	if err != nil {
		return nil, "", err
	}
	return file, path, nil
}

func (s *Server) servedPath(handle string) (string, error) {
	path, err := filepath.Abs(handle)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", handle, err)
	}
	if s.filesDir == "" {
		return path, nil
	}
	rel, err := filepath.Rel(s.filesDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &ErrOutsideRoot{Path: handle}
	}
	return path, nil
}

// withRateLimit adds rate limiting middleware.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// clientID uses the remote IP; forwarded headers are not trusted.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":   "rate_limit_exceeded",
		"message": "Rate limit exceeded. Please try again later.",
		"limit":   info.Limit,
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	s.logger.Warn("rate limit exceeded", "client", clientID(r), "path", r.URL.Path, "limit", info.Limit)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		s.jsonResponse(w, status, map[string]string{"error": "internal error"})
		return
	}
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
