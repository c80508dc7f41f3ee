package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/jonathan/repackr/internal/pipeline"
	"github.com/jonathan/repackr/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestProgressSink_StageLines(t *testing.T) {
	var out bytes.Buffer
	sink := newProgressSink(&out, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	sink.Stage(pipeline.ProgressEvent{Stage: pipeline.StageResolve, Message: "reading post"})
	sink.Stage(pipeline.ProgressEvent{Stage: pipeline.StageDownload, Host: types.HostMediafire, Message: "downloading a.rar"})

	assert.Equal(t, "[RESOLVE] reading post\n[DOWNLOAD] mediafire: downloading a.rar\n", out.String())
}

func TestProgressSink_LogsTenths(t *testing.T) {
	var logs bytes.Buffer
	sink := newProgressSink(&bytes.Buffer{}, slog.New(slog.NewTextHandler(&logs, nil)))
	assert.False(t, sink.tty)

	for written := int64(0); written <= 1000; written += 50 {
		sink.Bytes(written, 1000)
	}

	// 0%, 10%, ... 100%
	assert.Equal(t, 11, strings.Count(logs.String(), "download progress"))
	assert.Contains(t, logs.String(), "percent=100")
	assert.Contains(t, logs.String(), "total=\"1.0 kB\"")
}

func TestProgressSink_RestartsOnRetry(t *testing.T) {
	var logs bytes.Buffer
	sink := newProgressSink(&bytes.Buffer{}, slog.New(slog.NewTextHandler(&logs, nil)))

	sink.Bytes(900, 1000)
	sink.Bytes(100, 1000)

	assert.Equal(t, 2, strings.Count(logs.String(), "download progress"))
	assert.Contains(t, logs.String(), "percent=10")
}
