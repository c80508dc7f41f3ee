// Package archive extracts downloaded archives with external tools, strips
// watermark files, injects branding and repacks the result as a zip.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jonathan/repackr/internal/types"
)

// Backend is one extraction tool.
type Backend interface {
	Name() string
	Tool() types.Tool
	Available() bool
	Extract(ctx context.Context, archivePath, destDir string) error
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures a CommandBackend.
type Option func(*CommandBackend)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(b *CommandBackend) {
		if exec != nil {
			b.exec = exec
		}
	}
}

// WithBinaries replaces the candidate binary names, tried in order.
func WithBinaries(names ...string) Option {
	return func(b *CommandBackend) {
		if len(names) > 0 {
			b.binaries = names
		}
	}
}

// WithLookPath replaces binary discovery (primarily for tests).
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(b *CommandBackend) {
		if lookPath != nil {
			b.lookPath = lookPath
		}
	}
}

// BackendError carries a failed tool run and whatever it printed.
type BackendError struct {
	Backend string
	Output  string
	Cause   error
}

func (e *BackendError) Error() string {
	output := strings.TrimSpace(e.Output)
	if output == "" {
		return fmt.Sprintf("%s failed: %v", e.Backend, e.Cause)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Backend, e.Cause, output)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// CommandBackend runs an external extraction binary.
type CommandBackend struct {
	name     string
	tool     types.Tool
	binaries []string
	args     func(archivePath, destDir string) []string
	exec     Executor
	lookPath func(string) (string, error)
}

// NewUnrar returns the unrar backend. Extraction never prompts: -y answers
// every question and -p- refuses passwords.
func NewUnrar(opts ...Option) *CommandBackend {
	return newCommandBackend("unrar", types.ToolUnrar, []string{"unrar"},
		func(archivePath, destDir string) []string {
			return []string{"x", "-y", "-p-", archivePath, strings.TrimSuffix(destDir, "/") + "/"}
		}, opts)
}

// NewSevenZip returns the 7-Zip backend, using the first of 7z, 7za or 7zz found.
func NewSevenZip(opts ...Option) *CommandBackend {
	return newCommandBackend("7-zip", types.ToolSevenZip, []string{"7z", "7za", "7zz"},
		func(archivePath, destDir string) []string {
			return []string{"x", archivePath, "-o" + destDir, "-y", "-p-"}
		}, opts)
}

func newCommandBackend(name string, tool types.Tool, binaries []string, args func(string, string) []string, opts []Option) *CommandBackend {
	b := &CommandBackend{
		name:     name,
		tool:     tool,
		binaries: binaries,
		args:     args,
		exec:     commandExecutor{},
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *CommandBackend) Name() string { return b.name }

func (b *CommandBackend) Tool() types.Tool { return b.tool }

// Binary returns the first candidate binary found.
func (b *CommandBackend) Binary() (string, bool) {
	for _, name := range b.binaries {
		if path, err := b.lookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// Binaries returns the candidate binary names.
func (b *CommandBackend) Binaries() []string {
	out := make([]string, len(b.binaries))
	copy(out, b.binaries)
	return out
}

func (b *CommandBackend) Available() bool {
	_, ok := b.Binary()
	return ok
}

func (b *CommandBackend) Extract(ctx context.Context, archivePath, destDir string) error {
	binary, ok := b.Binary()
	if !ok {
		return &BackendError{Backend: b.name, Cause: ErrNotInstalled}
	}
	output, err := b.exec.Run(ctx, binary, b.args(archivePath, destDir))
	if err != nil {
		return &BackendError{Backend: b.name, Output: string(output), Cause: err}
	}
	return nil
}

type commandExecutor struct{}

// Run executes binary with no stdin and returns combined output.
func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}
