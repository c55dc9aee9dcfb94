// Package probe implements the telemetry sources. Every probe reads through
// a host.Host, so the same code serves local and remote targets.
package probe

import (
	"context"
	"time"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

// Probe is one telemetry source.
type Probe interface {
	Descriptor() Descriptor
	// Probe never panics and reports at most one error.
	Probe(ctx context.Context, h host.Host) Result
}

// Descriptor tells the aggregator where a probe applies.
type Descriptor struct {
	ID telemetry.SourceID
	// Platforms lists GOOS values the probe runs on; empty means any.
	Platforms []string
	Local     bool
	Remote    bool
	// Timeout overrides the aggregator default when non-zero.
	Timeout time.Duration
}

// Supports reports whether the probe applies to goos over the given channel.
func (d Descriptor) Supports(goos string, remote bool) bool {
	if remote && !d.Remote || !remote && !d.Local {
		return false
	}
	if len(d.Platforms) == 0 {
		return true
	}
	for _, p := range d.Platforms {
		if p == goos {
			return true
		}
	}

	return false
}

// Result is what one probe run produced.
type Result struct {
	Readings  []telemetry.RawReading
	Inventory telemetry.Inventory
	Err       *telemetry.ProbeError
}

var linuxOnly = []string{"linux"}

const (
	detailNotInstalled = "tool not installed"
	detailPrivilege    = "requires elevated privilege"
	detailTimedOut     = "timed out"
)

func failed(id telemetry.SourceID, kind telemetry.Kind, detail string) Result {
	return Result{Err: telemetry.NewProbeError(id, kind, detail)}
}

// failure converts a host error into a probe error. what names the tool or
// path for the detail text.
func failure(id telemetry.SourceID, err error, what string) *telemetry.ProbeError {
	switch {
	case errors.HasCode(err, host.ErrCommandNotFound):
		return telemetry.NewProbeError(id, telemetry.KindUnavailable, what+": "+detailNotInstalled)
	case errors.HasCode(err, host.ErrPathNotFound):
		return telemetry.NewProbeError(id, telemetry.KindUnavailable, what+": not present")
	case errors.HasCode(err, host.ErrPermissionDenied):
		return telemetry.NewProbeError(id, telemetry.KindPermissionDenied, what+": "+detailPrivilege)
	case errors.HasCode(err, host.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return telemetry.NewProbeError(id, telemetry.KindTimeout, what+": "+detailTimedOut)
	default:
		return telemetry.NewProbeError(id, telemetry.KindUnavailable, err.Error())
	}
}

func failedWith(id telemetry.SourceID, err error, what string) Result {
	return Result{Err: failure(id, err, what)}
}
