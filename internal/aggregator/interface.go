package aggregator

import (
	"context"
	"time"

	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/logger"
	"codeberg.org/mutker/hwsnap/internal/probe"
	"codeberg.org/mutker/hwsnap/internal/remote"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

const (
	DefaultProbeTimeout       = 3 * time.Second
	DefaultRemoteProbeTimeout = 10 * time.Second
)

// Config controls probe selection and timeouts.
type Config struct {
	// Root prefixes local file paths, "/" for the real machine.
	Root               string
	ProbeTimeout       time.Duration
	RemoteProbeTimeout time.Duration
	Disabled           []telemetry.SourceID
	Remote             remote.Config
}

// RemoteHost is a connected remote machine.
type RemoteHost interface {
	host.Host
	Info() remote.Info
	Close() error
}

// Dialer opens a connection to a remote target.
type Dialer func(ctx context.Context, target telemetry.RemoteTarget) (RemoteHost, error)

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithProbes replaces the default probe registry.
func WithProbes(probes ...probe.Probe) Option {
	return func(a *Aggregator) {
		a.probes = probes
	}
}

// WithHost replaces the local host.
func WithHost(h host.Host) Option {
	return func(a *Aggregator) {
		a.local = h
	}
}

// WithDialer replaces the SSH dialer used for remote snapshots.
func WithDialer(d Dialer) Option {
	return func(a *Aggregator) {
		a.dial = d
	}
}

// WithLogger sets the logger for probe diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		a.log = l
	}
}

// WithDescriber replaces how the local target is described.
func WithDescriber(fn func(ctx context.Context) telemetry.Target) Option {
	return func(a *Aggregator) {
		a.describe = fn
	}
}
