// Package gpu reads NVIDIA GPU telemetry through NVML.
package gpu

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/hwsnap/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const bytesPerMiB = 1024 * 1024

// Reader enumerates GPUs. NVML is initialized per call and shut down
// before returning, so no handle outlives one snapshot.
type Reader struct {
	nvml nvmlController
	mu   sync.Mutex
}

func NewReader() *Reader {
	return &Reader{nvml: &nvmlWrapper{}}
}

func newReaderWith(c nvmlController) *Reader {
	return &Reader{nvml: c}
}

// Devices returns every GPU NVML can see. Unsupported queries leave the
// corresponding field nil.
func (r *Reader) Devices() ([]Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.nvml.Initialize(); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.nvml.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("NVML shutdown failed")
		}
	}()

	count, err := r.nvml.GetDeviceCount()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		dev, err := r.nvml.GetDevice(i)
		if err != nil {
			logger.Debug().Err(err).Int("index", i).Msg("Skipping GPU")
			continue
		}
		devices = append(devices, read(i, dev))
	}

	return devices, nil
}

func read(index int, dev device) Device {
	d := Device{Index: index, Name: fmt.Sprintf("GPU %d", index)}

	if name, ret := dev.GetName(); IsNVMLSuccess(ret) {
		d.Name = name
	}

	if pci, ret := dev.GetPciInfo(); IsNVMLSuccess(ret) {
		d.BusID = fmt.Sprintf("%04x:%02x:%02x.0", pci.Domain, pci.Bus, pci.Device)
	}

	if mem, ret := dev.GetMemoryInfo(); IsNVMLSuccess(ret) {
		d.MemoryMiB = ptr(float64(mem.Total / bytesPerMiB))
	}

	if t, ret := dev.GetTemperature(nvml.TEMPERATURE_GPU); IsNVMLSuccess(ret) {
		d.Temperature = ptr(float64(t))
	}

	if t, ret := dev.GetTemperatureThreshold(nvml.TEMPERATURE_THRESHOLD_SLOWDOWN); IsNVMLSuccess(ret) {
		d.SlowdownTemp = ptr(float64(t))
	}

	if t, ret := dev.GetTemperatureThreshold(nvml.TEMPERATURE_THRESHOLD_SHUTDOWN); IsNVMLSuccess(ret) {
		d.ShutdownTemp = ptr(float64(t))
	}

	if mw, ret := dev.GetPowerUsage(); IsNVMLSuccess(ret) {
		d.PowerMilliwatts = ptr(float64(mw))
	} else {
		logger.Debug().Msgf("GPU %d power usage: %v", index, nvml.ErrorString(ret))
	}

	return d
}

func ptr(v float64) *float64 {
	return &v
}
