package host

import (
	"context"
	"path"
	"sort"

	"codeberg.org/mutker/hwsnap/internal/errors"
)

// DirReader is implemented by hosts where reading a whole directory in one
// go is much cheaper than reading its files one by one.
type DirReader interface {
	// ReadDir returns the contents of the regular files directly under dir,
	// keyed by base name. Unreadable and empty files are left out.
	ReadDir(ctx context.Context, dir string) (map[string][]byte, error)
}

// Prefetch returns a Host that serves reads and globs directly under dir
// from a single ReadDir call. Hosts that are not a DirReader, or whose
// ReadDir fails, are returned unchanged.
func Prefetch(ctx context.Context, h Host, dir string) Host {
	dr, ok := h.(DirReader)
	if !ok {
		return h
	}

	files, err := dr.ReadDir(ctx, dir)
	if err != nil {
		return h
	}

	return &prefetched{Host: h, dir: dir, files: files}
}

type prefetched struct {
	Host
	dir   string
	files map[string][]byte
}

func (p *prefetched) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if path.Dir(name) != p.dir {
		return p.Host.ReadFile(ctx, name)
	}

	data, ok := p.files[path.Base(name)]
	if !ok {
		return nil, errors.New().WithMessage(ErrPathNotFound, name)
	}

	return data, nil
}

func (p *prefetched) Glob(ctx context.Context, pattern string) ([]string, error) {
	if path.Dir(pattern) != p.dir {
		return p.Host.Glob(ctx, pattern)
	}

	base := path.Base(pattern)
	var matches []string
	for name := range p.files {
		ok, err := path.Match(base, name)
		if err != nil {
			return nil, errors.New().Wrap(errors.ErrInvalidArgument, err).WithMessage(pattern)
		}
		if ok {
			matches = append(matches, p.dir+"/"+name)
		}
	}
	sort.Strings(matches)

	return matches, nil
}
