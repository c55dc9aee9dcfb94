package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

const vendorNVIDIA = "NVIDIA"

var nvidiaSMIArgs = []string{
	"--query-gpu=name,memory.total,temperature.gpu,power.draw",
	"--format=csv,noheader,nounits",
}

// NvidiaSMI queries the NVIDIA command line tool.
type NvidiaSMI struct{}

func (NvidiaSMI) Descriptor() Descriptor {
	return Descriptor{
		ID:        telemetry.SourceNvidiaSMI,
		Platforms: []string{"linux", "windows", "freebsd"},
		Local:     true,
		Remote:    true,
	}
}

func (NvidiaSMI) Probe(ctx context.Context, h host.Host) Result {
	out, err := h.Run(ctx, "nvidia-smi", nvidiaSMIArgs...)
	if err != nil {
		return failedWith(telemetry.SourceNvidiaSMI, err, "nvidia-smi")
	}

	res, ok := ParseNvidiaSMI(string(out))
	if !ok {
		return failed(telemetry.SourceNvidiaSMI, telemetry.KindParseError, "unexpected nvidia-smi output")
	}

	return res
}

// ParseNvidiaSMI reads one "name, memory MiB, temperature, power W" line
// per GPU. Fields reported as N/A are skipped. It returns false when no
// line has the expected shape.
func ParseNvidiaSMI(out string) (Result, bool) {
	var res Result
	index := 0

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		name := fields[0]
		device := fmt.Sprintf("gpu%d", index)
		index++

		gpu := telemetry.GPUDevice{Vendor: vendorNVIDIA, Name: name, Source: telemetry.SourceNvidiaSMI}
		if mem, ok := parseSMIField(fields[1]); ok {
			gpu.MemoryMiB = &mem
		}
		res.Inventory.GPUs = append(res.Inventory.GPUs, gpu)

		if temp, ok := parseSMIField(fields[2]); ok {
			res.Readings = append(res.Readings, telemetry.RawReading{
				Source: telemetry.SourceNvidiaSMI,
				Device: device,
				Label:  name,
				Value:  temp,
				Unit:   telemetry.RawDegree,
			})
		}

		if len(fields) > 3 {
			if watts, ok := parseSMIField(fields[3]); ok {
				res.Readings = append(res.Readings, telemetry.RawReading{
					Source: telemetry.SourceNvidiaSMI,
					Device: device,
					Label:  name,
					Value:  watts,
					Unit:   telemetry.RawWatt,
				})
			}
		}
	}

	return res, index > 0
}

func parseSMIField(s string) (float64, bool) {
	switch s {
	case "", "N/A", "[N/A]", "[Not Supported]", "[Unknown Error]":
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
