package server

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrFileNotFound indicates no stored file has the requested code.
type ErrFileNotFound struct {
	Code string
}

func (e *ErrFileNotFound) Error() string {
	return fmt.Sprintf("file not found: %s", e.Code)
}

// ErrInvalidCode indicates a malformed share code.
type ErrInvalidCode struct {
	Code string
}

func (e *ErrInvalidCode) Error() string {
	return fmt.Sprintf("invalid code: %q", e.Code)
}

// ErrFileGone indicates the code exists but its archive is no longer on disk.
type ErrFileGone struct {
	Code string
}

func (e *ErrFileGone) Error() string {
	return fmt.Sprintf("file for %s is no longer available", e.Code)
}

// ErrOutsideRoot indicates a stored handle that points outside the served directory.
type ErrOutsideRoot struct {
	Path string
}

func (e *ErrOutsideRoot) Error() string {
	return fmt.Sprintf("path outside served directory: %s", e.Path)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		notFound *ErrFileNotFound
		invalid  *ErrInvalidCode
		gone     *ErrFileGone
		outside  *ErrOutsideRoot
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &gone):
		return http.StatusGone
	case errors.As(err, &outside):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
