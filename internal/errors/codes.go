package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrParseFlags      ErrorCode = "parse_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidTimeout  ErrorCode = "invalid_timeout"
	ErrInvalidProbe    ErrorCode = "invalid_probe"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Application errors
	ErrEncodeOut   ErrorCode = "encode_output_failed"
	ErrServeFailed ErrorCode = "serve_failed"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrInvalidArgument: "Invalid argument provided",
	ErrInvalidConfig:   "Invalid configuration",
	ErrBindFlags:       "Failed to bind flags",
	ErrParseFlags:      "Failed to parse flags",
	ErrReadConfig:      "Failed to read config file",
	ErrInvalidTimeout:  "Invalid probe timeout",
	ErrInvalidProbe:    "Unknown probe name",
	ErrInvalidLogLevel: "Invalid log level",
	ErrEncodeOut:       "Failed to encode snapshot",
	ErrServeFailed:     "Exporter stopped",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
