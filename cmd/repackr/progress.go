package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonathan/repackr/internal/pipeline"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// progressSink renders pipeline progress. On a terminal downloads get a
// progress bar; otherwise every tenth of a download is logged.
type progressSink struct {
	out    io.Writer
	logger *slog.Logger
	tty    bool

	bar     *progressbar.ProgressBar
	total   int64
	written int64
	step    int64
}

func newProgressSink(out io.Writer, logger *slog.Logger) *progressSink {
	return &progressSink{out: out, logger: logger, tty: isTerminal(out), step: -1}
}

// Stage prints a tagged status line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (s *progressSink) Stage(event pipeline.ProgressEvent) {
	s.Finish()
	s.total = 0
	tag := strings.ToUpper(event.Stage)
	if event.Host != "" {
		fmt.Fprintf(s.out, "[%s] %s: %s\n", tag, event.Host, event.Message)
		return
	}
	fmt.Fprintf(s.out, "[%s] %s\n", tag, event.Message)
}

// Bytes reports download progress.
func (s *progressSink) Bytes(written, total int64) {
	// A smaller count means a retry restarted the download.
	if total != s.total || written < s.written || (s.tty && s.bar == nil) {
		s.reset(total)
	}
	s.written = written

	if s.tty {
		_ = s.bar.Set64(written)
		return
	}

	step := written * 10 / total
	if step > s.step {
		s.step = step
		s.logger.Info("download progress",
			"written", humanize.Bytes(uint64(written)),
			"total", humanize.Bytes(uint64(total)),
			"percent", step*10,
		)
	}
}

// Finish closes any open progress bar.
func (s *progressSink) Finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
}

func (s *progressSink) reset(total int64) {
	s.Finish()
	s.total = total
	s.written = 0
	s.step = -1
	if s.tty {
		s.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
