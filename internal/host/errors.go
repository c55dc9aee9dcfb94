package host

import (
	"strings"

	"codeberg.org/mutker/hwsnap/internal/errors"
)

const (
	ErrPathNotFound     = errors.ErrorCode("host_path_not_found")
	ErrCommandNotFound  = errors.ErrorCode("host_command_not_found")
	ErrPermissionDenied = errors.ErrorCode("host_permission_denied")
	ErrCommandFailed    = errors.ErrorCode("host_command_failed")
	ErrTimeout          = errors.ErrorCode("host_timeout")
)

var permissionMarkers = []string{
	"permission denied",
	"operation not permitted",
	"must be root",
	"a password is required",
	"insufficient permissions",
}

// IsPermissionMessage reports whether a command's stderr reads like a
// privilege refusal.
func IsPermissionMessage(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, m := range permissionMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}

	return false
}
