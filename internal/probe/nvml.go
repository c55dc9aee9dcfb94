package probe

import (
	"context"
	"fmt"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/gpu"
	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

// GPUReader lists GPUs through the vendor management library.
type GPUReader interface {
	Devices() ([]gpu.Device, error)
}

// NVML reads GPUs through the NVIDIA management library. It only works on
// the local machine.
type NVML struct {
	reader GPUReader
}

func NewNVML(r GPUReader) *NVML {
	return &NVML{reader: r}
}

func (*NVML) Descriptor() Descriptor {
	return Descriptor{ID: telemetry.SourceNVML, Platforms: []string{"linux", "windows"}, Local: true}
}

func (p *NVML) Probe(ctx context.Context, _ host.Host) Result {
	type outcome struct {
		devices []gpu.Device
		err     error
	}

	// NVML calls are not cancellable; the aggregator's timeout bounds them.
	done := make(chan outcome, 1)
	go func() {
		devices, err := p.reader.Devices()
		done <- outcome{devices, err}
	}()

	var o outcome
	select {
	case <-ctx.Done():
		return failedWith(telemetry.SourceNVML, ctx.Err(), "nvml")
	case o = <-done:
	}

	switch {
	case o.err == nil:
	case errors.HasCode(o.err, gpu.ErrLibraryNotFound):
		return failed(telemetry.SourceNVML, telemetry.KindUnavailable, "NVIDIA driver not installed")
	case errors.HasCode(o.err, gpu.ErrNoPermission):
		return failed(telemetry.SourceNVML, telemetry.KindPermissionDenied, detailPrivilege)
	default:
		return failed(telemetry.SourceNVML, telemetry.KindUnavailable, o.err.Error())
	}

	if len(o.devices) == 0 {
		return failed(telemetry.SourceNVML, telemetry.KindUnavailable, "no NVIDIA GPUs")
	}

	var res Result
	for _, d := range o.devices {
		device := fmt.Sprintf("gpu%d", d.Index)

		res.Inventory.GPUs = append(res.Inventory.GPUs, telemetry.GPUDevice{
			Bus:       d.BusID,
			Vendor:    vendorNVIDIA,
			Name:      d.Name,
			MemoryMiB: d.MemoryMiB,
			Source:    telemetry.SourceNVML,
		})

		if d.Temperature != nil {
			res.Readings = append(res.Readings, telemetry.RawReading{
				Source:   telemetry.SourceNVML,
				Device:   device,
				Label:    d.Name,
				Value:    *d.Temperature,
				Unit:     telemetry.RawDegree,
				Critical: d.ShutdownTemp,
				Max:      d.SlowdownTemp,
			})
		}

		if d.PowerMilliwatts != nil {
			res.Readings = append(res.Readings, telemetry.RawReading{
				Source: telemetry.SourceNVML,
				Device: device,
				Label:  d.Name,
				Value:  *d.PowerMilliwatts,
				Unit:   telemetry.RawMilliwatt,
			})
		}
	}

	return res
}
