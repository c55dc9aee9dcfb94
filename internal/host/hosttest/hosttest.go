// Package hosttest provides a Host backed by a temporary directory and
// scripted command output.
package hosttest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/host"
)

// Command is the scripted result of one command line.
type Command struct {
	Stdout string
	Err    error
	// Hang blocks until the context is done.
	Hang bool
}

type Host struct {
	*host.Local
	Root string
	GOOS string

	mu       sync.Mutex
	commands map[string]Command
	calls    []string
}

var _ host.Host = (*Host)(nil)

// New returns an empty linux host rooted at a fresh temporary directory.
func New(t testing.TB) *Host {
	t.Helper()
	root := t.TempDir()

	return &Host{
		Local:    host.NewLocal(root),
		Root:     root,
		GOOS:     "linux",
		commands: make(map[string]Command),
	}
}

// WriteFile creates path, given as seen on the target, with content.
func (h *Host) WriteFile(t testing.TB, path, content string) {
	t.Helper()
	full := filepath.Join(h.Root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Symlink makes link point at target; both are paths as seen on the target.
func (h *Host) Symlink(t testing.TB, target, link string) {
	t.Helper()
	full := filepath.Join(h.Root, link)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", link, err)
	}
	if err := os.MkdirAll(filepath.Join(h.Root, target), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", target, err)
	}
	if err := os.Symlink(filepath.Join(h.Root, target), full); err != nil {
		t.Fatalf("symlink %s: %v", link, err)
	}
}

// SetCommand scripts the result of cmdline, e.g. "sensors -A".
func (h *Host) SetCommand(cmdline string, c Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[cmdline] = c
}

// Calls returns every command line run so far.
func (h *Host) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]string(nil), h.calls...)
}

// Run returns the scripted result. Unscripted commands are not installed.
func (h *Host) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	h.mu.Lock()
	h.calls = append(h.calls, cmdline)
	c, ok := h.commands[cmdline]
	h.mu.Unlock()

	if !ok {
		return nil, NotFound(name)
	}
	if c.Hang {
		<-ctx.Done()
		return nil, errors.New().Wrap(host.ErrTimeout, ctx.Err())
	}

	return []byte(c.Stdout), c.Err
}

func (h *Host) OS(context.Context) string {
	return h.GOOS
}

// NotFound is the error of a command that is not installed.
func NotFound(name string) error {
	return errors.New().WithData(host.ErrCommandNotFound, name)
}

// PermissionDenied is the error of a command refused for lack of privilege.
func PermissionDenied(msg string) error {
	return errors.New().WithMessage(host.ErrPermissionDenied, msg)
}

// Failed is the error of a command that exited non-zero.
func Failed(msg string) error {
	return errors.New().WithMessage(host.ErrCommandFailed, msg)
}
