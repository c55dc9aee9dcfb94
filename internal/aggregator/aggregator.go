// Package aggregator runs the probes concurrently against a host and
// assembles one Snapshot from whatever they return.
package aggregator

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/hwsnap/internal/classify"
	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/logger"
	"codeberg.org/mutker/hwsnap/internal/probe"
	"codeberg.org/mutker/hwsnap/internal/remote"
	"codeberg.org/mutker/hwsnap/internal/resolve"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"codeberg.org/mutker/hwsnap/internal/units"
	pshost "github.com/shirou/gopsutil/v3/host"
)

type Aggregator struct {
	cfg      Config
	probes   []probe.Probe
	disabled map[telemetry.SourceID]bool
	local    host.Host
	dial     Dialer
	describe func(ctx context.Context) telemetry.Target
	log      logger.Logger
}

func New(cfg Config, opts ...Option) *Aggregator {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.RemoteProbeTimeout <= 0 {
		cfg.RemoteProbeTimeout = DefaultRemoteProbeTimeout
	}

	a := &Aggregator{
		cfg:      cfg,
		probes:   probe.Default(),
		disabled: make(map[telemetry.SourceID]bool, len(cfg.Disabled)),
		local:    host.NewLocal(cfg.Root),
		describe: describeLocal,
		log:      logger.Default(),
	}
	a.dial = func(ctx context.Context, target telemetry.RemoteTarget) (RemoteHost, error) {
		h, err := remote.Dial(ctx, target, a.cfg.Remote)
		if err != nil {
			return nil, err
		}

		return h, nil
	}

	for _, id := range cfg.Disabled {
		a.disabled[id] = true
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// GetSnapshot probes the local machine. It always returns a snapshot.
func (a *Aggregator) GetSnapshot(ctx context.Context) telemetry.Snapshot {
	return a.collect(ctx, a.local, a.describe(ctx), false, a.cfg.ProbeTimeout)
}

// GetRemoteSnapshot probes hostname over SSH as user, dialing ip instead of
// hostname when given. Connection failures are reported in the snapshot.
func (a *Aggregator) GetRemoteSnapshot(ctx context.Context, hostname, user, ip string) telemetry.Snapshot {
	target := telemetry.Target{
		Kind:     telemetry.TargetRemote,
		Hostname: hostname,
		Address:  ip,
		User:     user,
	}
	if target.Address == "" {
		target.Address = hostname
	}

	if target.Address == "" || user == "" {
		return connectionFailure(target, "remote target needs a host and a user")
	}

	h, err := a.dial(ctx, telemetry.RemoteTarget{
		Host: hostname,
		User: user,
		IP:   ip,
		Port: a.cfg.Remote.Port,
	})
	if err != nil {
		a.log.Debug().Str("host", target.Address).Err(err).Msg("Remote connection failed")
		return connectionFailure(target, err.Error())
	}
	defer h.Close()

	info := h.Info()
	target.OS = info.OS
	target.Kernel = info.Kernel
	if target.Hostname == "" {
		target.Hostname = info.Hostname
	}

	return a.collect(ctx, h, target, true, a.cfg.RemoteProbeTimeout)
}

func connectionFailure(target telemetry.Target, detail string) telemetry.Snapshot {
	s := telemetry.NewSnapshot(target)
	s.Errors = append(s.Errors, *telemetry.NewProbeError(telemetry.SourceRemote, telemetry.KindConnectionError, detail))

	return s
}

func (a *Aggregator) collect(ctx context.Context, h host.Host, target telemetry.Target, isRemote bool, timeout time.Duration) telemetry.Snapshot {
	s := telemetry.NewSnapshot(target)

	goos := h.OS(ctx)
	if s.Target.OS == "" {
		s.Target.OS = goos
	}

	selected := a.applicable(goos, isRemote)
	outcomes := a.run(ctx, h, selected, timeout)

	merge(&s, outcomes)
	resolve.Fill(&s)

	a.log.Debug().
		Str("target", string(target.Kind)).
		Int("probes", len(selected)).
		Int("readings", len(s.Readings)).
		Int("errors", len(s.Errors)).
		Msg("Snapshot collected")

	return s
}

func (a *Aggregator) applicable(goos string, isRemote bool) []probe.Probe {
	var selected []probe.Probe
	for _, p := range a.probes {
		d := p.Descriptor()
		if a.disabled[d.ID] {
			a.log.Debug().Str("source", string(d.ID)).Msg("Probe disabled")
			continue
		}
		if d.Supports(goos, isRemote) {
			selected = append(selected, p)
		}
	}

	return selected
}

type outcome struct {
	index   int
	source  telemetry.SourceID
	result  probe.Result
	elapsed time.Duration
}

// run executes probes concurrently and returns their outcomes in registry
// order once every probe has finished or timed out.
func (a *Aggregator) run(ctx context.Context, h host.Host, probes []probe.Probe, timeout time.Duration) []outcome {
	results := make(chan outcome, len(probes))

	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p probe.Probe) {
			defer wg.Done()
			results <- a.runOne(ctx, h, i, p, timeout)
		}(i, p)
	}
	wg.Wait()
	close(results)

	outcomes := make([]outcome, 0, len(probes))
	for o := range results {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].index < outcomes[j].index
	})

	return outcomes
}

// runOne bounds a single probe by its timeout. A probe still running when
// the timeout fires is abandoned; its late result lands in a buffered
// channel nobody reads.
func (a *Aggregator) runOne(ctx context.Context, h host.Host, index int, p probe.Probe, timeout time.Duration) outcome {
	d := p.Descriptor()
	if d.Timeout > 0 {
		timeout = d.Timeout
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan probe.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probe.Result{Err: telemetry.NewProbeError(d.ID, telemetry.KindUnavailable, fmt.Sprintf("probe panicked: %v", r))}
			}
		}()
		done <- p.Probe(pctx, h)
	}()

	var res probe.Result
	select {
	case res = <-done:
	case <-pctx.Done():
		res = probe.Result{Err: telemetry.NewProbeError(d.ID, telemetry.KindTimeout, "timed out after "+timeout.String())}
	}

	o := outcome{index: index, source: d.ID, result: res, elapsed: time.Since(start)}
	if res.Err != nil {
		a.log.Debug().
			Str("source", string(d.ID)).
			Str("kind", string(res.Err.Kind)).
			Str("detail", res.Err.Detail).
			Dur("elapsed", o.elapsed).
			Msg("Probe failed")
	} else {
		a.log.Debug().
			Str("source", string(d.ID)).
			Int("readings", len(res.Readings)).
			Dur("elapsed", o.elapsed).
			Msg("Probe finished")
	}

	return o
}

// merge folds completed outcomes into s. Outcomes arrive in registry order,
// so earlier probes win inventory conflicts.
func merge(s *telemetry.Snapshot, outcomes []outcome) {
	gpus := make(map[telemetry.SourceID][]telemetry.GPUDevice)

	for _, o := range outcomes {
		if o.result.Err != nil {
			s.Errors = append(s.Errors, *o.result.Err)
		}

		for _, raw := range o.result.Readings {
			if r, ok := reading(raw); ok {
				s.Readings = append(s.Readings, r)
			}
		}

		inv := o.result.Inventory
		gpus[o.source] = append(gpus[o.source], inv.GPUs...)
		inv.GPUs = nil
		s.Inventory.Merge(inv)
	}

	s.Inventory.GPUs = mergeGPUs(gpus)

	sort.SliceStable(s.Errors, func(i, j int) bool {
		return s.Errors[i].Source < s.Errors[j].Source
	})
}

// reading normalizes and classifies raw. Values that cannot be trusted are
// dropped.
func reading(raw telemetry.RawReading) (telemetry.Reading, bool) {
	n, ok := units.Normalize(raw)
	if !ok {
		return telemetry.Reading{}, false
	}

	return telemetry.Reading{
		Source:     raw.Source,
		Device:     raw.Device,
		Category:   classify.Category(raw.Device, raw.Label),
		Label:      raw.Label,
		Value:      n.Value,
		Unit:       n.Unit,
		Critical:   n.Critical,
		Max:        n.Max,
		Scope:      classify.Scope(raw.Label),
		Cumulative: n.Unit == telemetry.UnitJoule,
		Heuristic:  n.Heuristic,
	}, true
}

// mergeGPUs lists vendor-tool GPUs first. The management library wins over
// the command-line tool, and bus-enumerated NVIDIA entries are dropped when
// either reported.
func mergeGPUs(bySource map[telemetry.SourceID][]telemetry.GPUDevice) []telemetry.GPUDevice {
	vendor := bySource[telemetry.SourceNVML]
	if len(vendor) == 0 {
		vendor = bySource[telemetry.SourceNvidiaSMI]
	}

	out := append([]telemetry.GPUDevice{}, vendor...)
	for _, src := range telemetry.Sources {
		if src == telemetry.SourceNVML || src == telemetry.SourceNvidiaSMI {
			continue
		}
		for _, g := range bySource[src] {
			if len(vendor) > 0 && strings.EqualFold(g.Vendor, "NVIDIA") {
				continue
			}
			out = append(out, g)
		}
	}

	return out
}

func describeLocal(ctx context.Context) telemetry.Target {
	t := telemetry.Target{Kind: telemetry.TargetLocal, OS: runtime.GOOS}

	info, err := pshost.InfoWithContext(ctx)
	if err != nil {
		return t
	}

	t.Hostname = info.Hostname
	t.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	t.Kernel = info.KernelVersion

	return t
}
