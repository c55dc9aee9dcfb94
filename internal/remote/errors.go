package remote

import "codeberg.org/mutker/hwsnap/internal/errors"

const (
	ErrNoAuth       = errors.ErrorCode("remote_no_auth_method")
	ErrIdentityFile = errors.ErrorCode("remote_identity_file")
	ErrKnownHosts   = errors.ErrorCode("remote_known_hosts")
	ErrDial         = errors.ErrorCode("remote_dial_failed")
	ErrHandshake    = errors.ErrorCode("remote_handshake_failed")
	ErrSession      = errors.ErrorCode("remote_session_failed")
)
