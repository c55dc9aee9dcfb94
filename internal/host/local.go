package host

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"codeberg.org/mutker/hwsnap/internal/errors"
)

// Local is the machine the process runs on. A non-empty root prefixes every
// file path, which lets tests and chroot setups supply their own /sys.
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	if root == "/" {
		root = ""
	}

	return &Local{root: strings.TrimSuffix(root, "/")}
}

func (l *Local) path(p string) string {
	return l.root + p
}

func (l *Local) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New().Wrap(ErrTimeout, err)
	}

	data, err := os.ReadFile(l.path(path))
	if err != nil {
		return nil, fileError(path, err)
	}

	return data, nil
}

func (l *Local) Glob(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New().Wrap(ErrTimeout, err)
	}

	matches, err := filepath.Glob(l.path(pattern))
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrInvalidArgument, err)
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimPrefix(m, l.root))
	}
	sort.Strings(out)

	return out, nil
}

func (l *Local) Realpath(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.New().Wrap(ErrTimeout, err)
	}

	resolved, err := filepath.EvalSymlinks(l.path(path))
	if err != nil {
		return "", fileError(path, err)
	}

	return strings.TrimPrefix(resolved, l.root), nil
}

func (l *Local) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	errFactory := errors.New()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	switch {
	case ctx.Err() != nil:
		return nil, errFactory.Wrap(ErrTimeout, ctx.Err()).WithData(name)
	case errors.Is(err, exec.ErrNotFound):
		return nil, errFactory.Wrap(ErrCommandNotFound, err).WithData(name)
	case IsPermissionMessage(stderr.String()):
		return nil, errFactory.WithMessage(ErrPermissionDenied, firstLine(stderr.String()))
	default:
		msg := firstLine(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return stdout.Bytes(), errFactory.WithMessage(ErrCommandFailed, name+": "+msg)
	}
}

func (*Local) OS(context.Context) string {
	return runtime.GOOS
}

func fileError(path string, err error) error {
	errFactory := errors.New()
	switch {
	case os.IsNotExist(err):
		return errFactory.Wrap(ErrPathNotFound, err).WithMessage(path)
	case os.IsPermission(err):
		return errFactory.Wrap(ErrPermissionDenied, err).WithMessage(path)
	default:
		return errFactory.Wrap(errors.ErrInternal, err)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}
