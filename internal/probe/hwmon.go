package probe

import (
	"context"
	"path"
	"strings"

	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

const hwmonRoot = "/sys/class/hwmon"

// Hwmon reads the kernel sensor tree.
type Hwmon struct{}

func (Hwmon) Descriptor() Descriptor {
	return Descriptor{ID: telemetry.SourceHwmon, Platforms: linuxOnly, Local: true, Remote: true}
}

// hwmonChannel describes one class of sensor files, e.g. temp*_input.
type hwmonChannel struct {
	prefix string
	inputs []string
	unit   telemetry.RawUnit
	crit   string
	max    string
}

var hwmonChannels = []hwmonChannel{
	{prefix: "temp", inputs: []string{"input"}, unit: telemetry.RawTemperature, crit: "crit", max: "max"},
	{prefix: "in", inputs: []string{"input"}, unit: telemetry.RawVoltage, crit: "crit", max: "max"},
	{prefix: "power", inputs: []string{"input", "average"}, unit: telemetry.RawMicrowatt, crit: "crit", max: "max"},
}

func (Hwmon) Probe(ctx context.Context, h host.Host) Result {
	dirs, err := h.Glob(ctx, hwmonRoot+"/hwmon*")
	if err != nil {
		return failedWith(telemetry.SourceHwmon, err, hwmonRoot)
	}
	if len(dirs) == 0 {
		return failed(telemetry.SourceHwmon, telemetry.KindUnavailable, "no kernel sensor tree")
	}

	var res Result
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return failedWith(telemetry.SourceHwmon, ctx.Err(), hwmonRoot)
		}
		res.Readings = append(res.Readings, readHwmonDevice(ctx, h, dir)...)
	}

	return res
}

// readHwmonDevice reads one hwmonN directory. Older drivers keep their
// files under device/.
func readHwmonDevice(ctx context.Context, h host.Host, dir string) []telemetry.RawReading {
	dh := host.Prefetch(ctx, h, dir)

	name, err := host.ReadString(ctx, dh, dir+"/name")
	if err != nil || name == "" {
		name = path.Base(dir)
	}

	out := readHwmonChannels(ctx, dh, dir, name)
	if len(out) == 0 {
		legacy := dir + "/device"
		out = readHwmonChannels(ctx, host.Prefetch(ctx, h, legacy), legacy, name)
	}

	return out
}

func readHwmonChannels(ctx context.Context, h host.Host, base, device string) []telemetry.RawReading {
	var out []telemetry.RawReading
	for _, ch := range hwmonChannels {
		out = append(out, readHwmonChannel(ctx, h, base, device, ch)...)
	}

	return out
}

func readHwmonChannel(ctx context.Context, h host.Host, base, device string, ch hwmonChannel) []telemetry.RawReading {
	var out []telemetry.RawReading
	seen := make(map[string]bool)

	for _, input := range ch.inputs {
		files, err := h.Glob(ctx, base+"/"+ch.prefix+"*_"+input)
		if err != nil {
			continue
		}

		for _, file := range files {
			id := strings.TrimSuffix(path.Base(file), "_"+input)
			if seen[id] {
				continue
			}

			v, err := host.ReadFloat(ctx, h, file)
			if err != nil {
				// disabled channels return EIO or ENODATA
				continue
			}
			seen[id] = true

			label, err := host.ReadString(ctx, h, base+"/"+id+"_label")
			if err != nil || label == "" {
				label = id
			}

			out = append(out, telemetry.RawReading{
				Source:   telemetry.SourceHwmon,
				Device:   device,
				Label:    label,
				Value:    v,
				Unit:     ch.unit,
				Critical: host.ReadOptionalFloat(ctx, h, base+"/"+id+"_"+ch.crit),
				Max:      host.ReadOptionalFloat(ctx, h, base+"/"+id+"_"+ch.max),
			})
		}
	}

	return out
}
