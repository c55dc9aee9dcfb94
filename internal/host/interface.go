// Package host abstracts the machine probes read from. Paths are always
// absolute paths as seen on the target machine.
package host

import "context"

// Host is the capability set every probe runs against.
type Host interface {
	// ReadFile returns the contents of path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Glob returns the paths matching pattern, sorted.
	Glob(ctx context.Context, pattern string) ([]string, error)
	// Realpath resolves every symlink in path.
	Realpath(ctx context.Context, path string) (string, error)
	// Run executes name with args and returns its stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// OS returns the target operating system in GOOS form, e.g. "linux".
	OS(ctx context.Context) string
}
