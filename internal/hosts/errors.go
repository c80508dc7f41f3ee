// Package hosts resolves file-host pages to direct download URLs and
// discovers file-host links on aggregator pages.
package hosts

import (
	"fmt"

	"github.com/jonathan/repackr/internal/types"
)

// LinkResolutionError reports a file-host page that yielded no direct link.
type LinkResolutionError struct {
	Host    types.Host
	URL     string
	Message string
	Cause   error
}

func (e *LinkResolutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("link resolution error (%s) for %s: %s: %v", e.Host, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("link resolution error (%s) for %s: %s", e.Host, e.URL, e.Message)
}

func (e *LinkResolutionError) Unwrap() error {
	return e.Cause
}
