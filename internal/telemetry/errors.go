package telemetry

import "fmt"

// Kind classifies why a probe contributed nothing.
type Kind string

const (
	KindUnavailable      Kind = "unavailable"
	KindPermissionDenied Kind = "permission_denied"
	KindTimeout          Kind = "timeout"
	KindParseError       Kind = "parse_error"
	KindConnectionError  Kind = "connection_error"
)

// ProbeError records a failed source. Detail is meant to be shown to users
// as is, e.g. "tool not installed".
type ProbeError struct {
	Source SourceID `json:"source"`
	Kind   Kind     `json:"kind"`
	Detail string   `json:"detail"`
}

func NewProbeError(source SourceID, kind Kind, detail string) *ProbeError {
	return &ProbeError{Source: source, Kind: kind, Detail: detail}
}

func (e *ProbeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Detail)
}
