package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload_Success(t *testing.T) {
	payload := []byte("PK\x03\x04 archive bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.zip")
	var lastWritten, lastTotal int64
	err := testFetcher().Download(context.Background(), server.URL, dest, func(written, total int64) {
		lastWritten, lastTotal = written, total
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, int64(len(payload)), lastWritten)
	assert.Equal(t, int64(len(payload)), lastTotal)
}

func TestDownload_RetriesAndOverwrites(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("third"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.rar")
	require.NoError(t, os.WriteFile(dest, []byte("stale content from before"), 0o644))

	err := testFetcher().Download(context.Background(), server.URL, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "third", string(data))
}

func TestDownload_BoundedAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.zip")
	err := testFetcher().Download(context.Background(), server.URL, dest, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, errors.Is(err, ErrDownloadFailed))

	var dlErr *DownloadError
	require.ErrorAs(t, err, &dlErr)
	assert.Len(t, dlErr.Attempts, 3)
	assert.NoFileExists(t, dest)
}

func TestDownload_HTMLIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>File expired</html>"))
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.RetryDelay = 0
	opts.MaxAttempts = 1
	dest := filepath.Join(t.TempDir(), "file.zip")

	err := New(opts, nil).Download(context.Background(), server.URL, dest, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instead of a file")
	assert.NoFileExists(t, dest)
}

func TestDownload_NoProgressWithoutLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.(http.Flusher).Flush() // chunked: no Content-Length
		_, _ = w.Write([]byte("chunked body"))
	}))
	defer server.Close()

	called := false
	dest := filepath.Join(t.TempDir(), "file.zip")
	err := testFetcher().Download(context.Background(), server.URL, dest, func(int64, int64) { called = true })
	require.NoError(t, err)
	assert.False(t, called)
}
