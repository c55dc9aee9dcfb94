package gpu

import (
	"testing"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	name      string
	temp      uint32
	powerMW   uint32
	powerRet  nvml.Return
	memTotal  uint64
	pci       nvml.PciInfo
	slowdown  uint32
	shutdown  uint32
	threshRet nvml.Return
}

func (d *fakeDevice) GetName() (string, nvml.Return) { return d.name, nvml.SUCCESS }

func (d *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return d.temp, nvml.SUCCESS
}

func (d *fakeDevice) GetTemperatureThreshold(t nvml.TemperatureThresholds) (uint32, nvml.Return) {
	if t == nvml.TEMPERATURE_THRESHOLD_SHUTDOWN {
		return d.shutdown, d.threshRet
	}
	return d.slowdown, d.threshRet
}

func (d *fakeDevice) GetPowerUsage() (uint32, nvml.Return) { return d.powerMW, d.powerRet }

func (d *fakeDevice) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	return nvml.Memory{Total: d.memTotal}, nvml.SUCCESS
}

func (d *fakeDevice) GetPciInfo() (nvml.PciInfo, nvml.Return) { return d.pci, nvml.SUCCESS }

type fakeNVML struct {
	initErr   error
	devices   []device
	shutdowns int
}

func (f *fakeNVML) Initialize() error            { return f.initErr }
func (f *fakeNVML) Shutdown() error              { f.shutdowns++; return nil }
func (f *fakeNVML) GetDeviceCount() (int, error) { return len(f.devices), nil }

func (f *fakeNVML) GetDevice(index int) (device, error) {
	return f.devices[index], nil
}

func TestReaderDevices(t *testing.T) {
	fake := &fakeNVML{devices: []device{
		&fakeDevice{
			name:     "NVIDIA GeForce RTX 3080",
			temp:     62,
			powerMW:  215340,
			memTotal: 10 * 1024 * 1024 * 1024,
			pci:      nvml.PciInfo{Domain: 0, Bus: 1, Device: 0},
			slowdown: 93,
			shutdown: 98,
		},
		&fakeDevice{
			name:      "NVIDIA T400",
			temp:      40,
			powerRet:  nvml.ERROR_NOT_SUPPORTED,
			threshRet: nvml.ERROR_NOT_SUPPORTED,
		},
	}}

	devices, err := newReaderWith(fake).Devices()
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, 1, fake.shutdowns)

	d := devices[0]
	assert.Equal(t, "NVIDIA GeForce RTX 3080", d.Name)
	assert.Equal(t, "0000:01:00.0", d.BusID)
	assert.Equal(t, 62.0, *d.Temperature)
	assert.Equal(t, 215340.0, *d.PowerMilliwatts)
	assert.Equal(t, 10240.0, *d.MemoryMiB)
	assert.Equal(t, 93.0, *d.SlowdownTemp)
	assert.Equal(t, 98.0, *d.ShutdownTemp)

	assert.Nil(t, devices[1].PowerMilliwatts)
	assert.Nil(t, devices[1].ShutdownTemp)
}

func TestReaderInitFailure(t *testing.T) {
	fake := &fakeNVML{initErr: errors.New().Wrap(ErrLibraryNotFound, newNVMLError(nvml.ERROR_LIBRARY_NOT_FOUND))}

	_, err := newReaderWith(fake).Devices()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrLibraryNotFound))
	assert.Zero(t, fake.shutdowns)
}

func TestInitErrorCode(t *testing.T) {
	assert.Equal(t, ErrLibraryNotFound, initErrorCode(nvml.ERROR_LIBRARY_NOT_FOUND))
	assert.Equal(t, ErrLibraryNotFound, initErrorCode(nvml.ERROR_DRIVER_NOT_LOADED))
	assert.Equal(t, ErrNoPermission, initErrorCode(nvml.ERROR_NO_PERMISSION))
	assert.Equal(t, ErrInitFailed, initErrorCode(nvml.ERROR_UNKNOWN))
}
