package probe

import (
	"context"
	"path"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

const powercapRoot = "/sys/class/powercap"

// RAPL reads the cumulative energy counters of the powercap interface.
// Counters are reported as energy; turning them into watts would need a
// second sample, which a single snapshot does not take.
type RAPL struct{}

func (RAPL) Descriptor() Descriptor {
	return Descriptor{ID: telemetry.SourceRAPL, Platforms: linuxOnly, Local: true, Remote: true}
}

func (RAPL) Probe(ctx context.Context, h host.Host) Result {
	counters, err := h.Glob(ctx, powercapRoot+"/*/energy_uj")
	if err != nil {
		return failedWith(telemetry.SourceRAPL, err, powercapRoot)
	}
	if len(counters) == 0 {
		return failed(telemetry.SourceRAPL, telemetry.KindUnavailable, "no energy counters")
	}

	var (
		res    Result
		denied error
	)
	for _, counter := range counters {
		dir := path.Dir(counter)

		uj, err := host.ReadFloat(ctx, h, counter)
		if err != nil {
			if errors.HasCode(err, host.ErrPermissionDenied) {
				denied = err
			}
			continue
		}

		name, err := host.ReadString(ctx, h, dir+"/name")
		if err != nil || name == "" {
			name = path.Base(dir)
		}

		res.Readings = append(res.Readings, telemetry.RawReading{
			Source: telemetry.SourceRAPL,
			Device: path.Base(dir),
			Label:  name,
			Value:  uj,
			Unit:   telemetry.RawMicrojoule,
		})
	}

	if len(res.Readings) == 0 && denied != nil {
		return failedWith(telemetry.SourceRAPL, denied, "energy_uj")
	}

	return res
}
