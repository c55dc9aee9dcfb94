package host

import (
	"context"
	"strconv"
	"strings"
)

// ReadString returns the trimmed contents of path.
func ReadString(ctx context.Context, h Host, path string) (string, error) {
	data, err := h.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

// ReadFloat parses the contents of path as a number.
func ReadFloat(ctx context.Context, h Host, path string) (float64, error) {
	s, err := ReadString(ctx, h, path)
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(s, 64)
}

// ReadOptionalFloat is ReadFloat that yields nil on any failure, for
// sidecar files that may or may not exist.
func ReadOptionalFloat(ctx context.Context, h Host, path string) *float64 {
	v, err := ReadFloat(ctx, h, path)
	if err != nil {
		return nil
	}

	return &v
}
