package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/repackr/internal/types"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindResolveFailed        Kind = "resolve_failed"
	KindNoCandidateLinks     Kind = "no_candidate_links"
	KindLinkResolutionFailed Kind = "link_resolution_failed"
	KindDownloadFailed       Kind = "download_failed"
	KindExtractionFailed     Kind = "extraction_failed"
	KindRepackFailed         Kind = "repack_failed"
	KindExhausted            Kind = "exhausted"
	KindUnsupportedURL       Kind = "unsupported_url"
)

// Sentinels for errors.Is, one per Kind.
var (
	ErrResolveFailed        = errors.New("aggregator page could not be resolved")
	ErrNoCandidateLinks     = errors.New("no supported file-host link found")
	ErrLinkResolutionFailed = errors.New("direct link could not be resolved")
	ErrDownloadFailed       = errors.New("download failed")
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrRepackFailed         = errors.New("repack failed")
	ErrExhausted            = errors.New("every candidate failed")
	ErrUnsupportedURL       = errors.New("unsupported URL")
)

var sentinels = map[Kind]error{
	KindResolveFailed:        ErrResolveFailed,
	KindNoCandidateLinks:     ErrNoCandidateLinks,
	KindLinkResolutionFailed: ErrLinkResolutionFailed,
	KindDownloadFailed:       ErrDownloadFailed,
	KindExtractionFailed:     ErrExtractionFailed,
	KindRepackFailed:         ErrRepackFailed,
	KindExhausted:            ErrExhausted,
	KindUnsupportedURL:       ErrUnsupportedURL,
}

// Error is the single error type returned by the orchestrator.
// Failures holds the per-candidate errors behind an exhausted run.
type Error struct {
	Kind     Kind
	Host     types.Host
	URL      string
	Message  string
	Cause    error
	Failures []*Error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Kind)
	if e.Host != "" {
		fmt.Fprintf(&b, " (%s)", e.Host)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " for %s", e.URL)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Cause != nil && len(e.Failures) == 0 {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	for i, f := range e.Failures {
		fmt.Fprintf(&b, "\n  candidate %d: %v", i+1, f)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's Kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Fatal reports whether the kind ends a run rather than a single candidate.
func (k Kind) Fatal() bool {
	switch k {
	case KindResolveFailed, KindNoCandidateLinks, KindExhausted, KindUnsupportedURL:
		return true
	default:
		return false
	}
}
