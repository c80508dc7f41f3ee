package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/repackr/internal/types"
)

var (
	// ErrExtractionFailed is matched by every error returned from Extractor.Extract.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrNotInstalled marks a backend whose binary is missing.
	ErrNotInstalled = errors.New("not installed")
)

// Attempt records one backend's failure.
type Attempt struct {
	Backend string
	Output  string
}

// ExtractionError reports that no backend could extract an archive.
type ExtractionError struct {
	Archive  string
	Attempts []Attempt
}

func (e *ExtractionError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("extraction of %s failed: no backends configured", e.Archive)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Backend, a.Output))
	}
	return fmt.Sprintf("extraction of %s failed (install unrar or p7zip-rar): %s", e.Archive, strings.Join(parts, " | "))
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

// BackendStatus reports whether a backend can run on this machine.
type BackendStatus struct {
	Name      string
	Tool      types.Tool
	Available bool
}

// Extractor tries backends in order until one succeeds.
type Extractor struct {
	backends []Backend
	logger   *slog.Logger
}

// DefaultBackends returns unrar then 7-Zip.
func DefaultBackends() []Backend {
	return []Backend{NewUnrar(), NewSevenZip()}
}

// NewExtractor creates an Extractor. With no backends it uses DefaultBackends.
func NewExtractor(logger *slog.Logger, backends ...Backend) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	return &Extractor{backends: backends, logger: logger}
}

// Extract unpacks archivePath into destDir, which must exist.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string) (types.ExtractionOutcome, error) {
	extErr := &ExtractionError{Archive: archivePath}

	for _, b := range e.backends {
		logger := e.logger.With("backend", b.Name(), "archive", archivePath)
		if !b.Available() {
			logger.Debug("extraction backend not installed")
			extErr.Attempts = append(extErr.Attempts, Attempt{Backend: b.Name(), Output: ErrNotInstalled.Error()})
			continue
		}

		if err := b.Extract(ctx, archivePath, destDir); err != nil {
			logger.Warn("extraction backend failed", "error", err)
			extErr.Attempts = append(extErr.Attempts, Attempt{Backend: b.Name(), Output: attemptOutput(err)})
			continue
		}

		logger.Info("archive extracted", "dest", destDir)
		return types.ExtractionOutcome{ExtractedDir: destDir, Tool: b.Tool()}, nil
	}

	return types.ExtractionOutcome{}, extErr
}

// Status reports availability of every configured backend.
func (e *Extractor) Status() []BackendStatus {
	out := make([]BackendStatus, 0, len(e.backends))
	for _, b := range e.backends {
		out = append(out, BackendStatus{Name: b.Name(), Tool: b.Tool(), Available: b.Available()})
	}
	return out
}

func attemptOutput(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		if out := strings.TrimSpace(be.Output); out != "" {
			return out
		}
		return be.Cause.Error()
	}
	return err.Error()
}
