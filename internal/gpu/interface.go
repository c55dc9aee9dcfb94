package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// device is the part of nvml.Device the reader queries.
type device interface {
	GetName() (string, nvml.Return)
	GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return)
	GetTemperatureThreshold(nvml.TemperatureThresholds) (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetPciInfo() (nvml.PciInfo, nvml.Return)
}

// Device is one GPU as reported by NVML. Pointer fields are nil when the
// driver does not support the query.
type Device struct {
	Index        int
	Name         string
	BusID        string
	MemoryMiB    *float64
	Temperature  *float64
	SlowdownTemp *float64
	ShutdownTemp *float64
	// PowerMilliwatts is the current board power draw.
	PowerMilliwatts *float64
}
