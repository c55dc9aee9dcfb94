package probe

import (
	"context"
	"path"

	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

const thermalRoot = "/sys/class/thermal"

// Thermal reads ACPI and platform thermal zones.
type Thermal struct{}

func (Thermal) Descriptor() Descriptor {
	return Descriptor{ID: telemetry.SourceThermal, Platforms: linuxOnly, Local: true, Remote: true}
}

func (Thermal) Probe(ctx context.Context, h host.Host) Result {
	zones, err := h.Glob(ctx, thermalRoot+"/thermal_zone*")
	if err != nil {
		return failedWith(telemetry.SourceThermal, err, thermalRoot)
	}
	if len(zones) == 0 {
		return failed(telemetry.SourceThermal, telemetry.KindUnavailable, "no thermal zones")
	}

	var res Result
	for _, zone := range zones {
		v, err := host.ReadFloat(ctx, h, zone+"/temp")
		if err != nil {
			continue
		}

		zoneType, err := host.ReadString(ctx, h, zone+"/type")
		if err != nil || zoneType == "" {
			zoneType = path.Base(zone)
		}

		res.Readings = append(res.Readings, telemetry.RawReading{
			Source: telemetry.SourceThermal,
			Device: path.Base(zone),
			Label:  zoneType,
			Value:  v,
			Unit:   telemetry.RawTemperature,
		})
	}

	return res
}
