package probe_test

import (
	"context"
	"testing"

	"codeberg.org/mutker/hwsnap/internal/host/hosttest"
	"codeberg.org/mutker/hwsnap/internal/probe"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findReading(rs []telemetry.RawReading, device, label string) *telemetry.RawReading {
	for i := range rs {
		if rs[i].Device == device && rs[i].Label == label {
			return &rs[i]
		}
	}
	return nil
}

func TestHwmonReadsTemperatureVoltageAndPower(t *testing.T) {
	h := hosttest.New(t)
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/name", "coretemp\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/temp1_input", "45000\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/temp1_label", "Package id 0\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/temp1_crit", "100000\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/temp1_max", "80000\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/temp2_input", "43000\n")

	h.WriteFile(t, "/sys/class/hwmon/hwmon1/name", "nct6798\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon1/in0_input", "1200\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon1/in0_label", "Vcore\n")

	h.WriteFile(t, "/sys/class/hwmon/hwmon2/name", "amdgpu\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon2/power1_average", "35000000\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon2/power1_label", "PPT\n")

	res := probe.Hwmon{}.Probe(context.Background(), h)
	require.Nil(t, res.Err)
	require.Len(t, res.Readings, 4)

	pkg := findReading(res.Readings, "coretemp", "Package id 0")
	require.NotNil(t, pkg)
	assert.Equal(t, 45000.0, pkg.Value)
	assert.Equal(t, telemetry.RawTemperature, pkg.Unit)
	assert.Equal(t, 100000.0, *pkg.Critical)
	assert.Equal(t, 80000.0, *pkg.Max)

	unlabeled := findReading(res.Readings, "coretemp", "temp2")
	require.NotNil(t, unlabeled)
	assert.Nil(t, unlabeled.Critical)

	vcore := findReading(res.Readings, "nct6798", "Vcore")
	require.NotNil(t, vcore)
	assert.Equal(t, telemetry.RawVoltage, vcore.Unit)

	ppt := findReading(res.Readings, "amdgpu", "PPT")
	require.NotNil(t, ppt)
	assert.Equal(t, telemetry.RawMicrowatt, ppt.Unit)
}

func TestHwmonSkipsUnreadableInputs(t *testing.T) {
	h := hosttest.New(t)
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/name", "nvme\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/temp1_input", "not a number\n")
	h.WriteFile(t, "/sys/class/hwmon/hwmon0/temp2_input", "38850\n")

	res := probe.Hwmon{}.Probe(context.Background(), h)
	require.Nil(t, res.Err)
	require.Len(t, res.Readings, 1)
	assert.Equal(t, "temp2", res.Readings[0].Label)
}

func TestHwmonUnavailable(t *testing.T) {
	res := probe.Hwmon{}.Probe(context.Background(), hosttest.New(t))
	require.NotNil(t, res.Err)
	assert.Equal(t, telemetry.KindUnavailable, res.Err.Kind)
	assert.Empty(t, res.Readings)
}

func TestThermalZones(t *testing.T) {
	h := hosttest.New(t)
	h.WriteFile(t, "/sys/class/thermal/thermal_zone0/type", "acpitz\n")
	h.WriteFile(t, "/sys/class/thermal/thermal_zone0/temp", "27800\n")
	h.WriteFile(t, "/sys/class/thermal/thermal_zone1/type", "x86_pkg_temp\n")
	h.WriteFile(t, "/sys/class/thermal/thermal_zone1/temp", "51000\n")

	res := probe.Thermal{}.Probe(context.Background(), h)
	require.Nil(t, res.Err)
	require.Len(t, res.Readings, 2)
	assert.Equal(t, "acpitz", res.Readings[0].Label)
	assert.Equal(t, "thermal_zone1", res.Readings[1].Device)
	assert.Equal(t, 51000.0, res.Readings[1].Value)
	assert.Equal(t, telemetry.RawTemperature, res.Readings[1].Unit)

	empty := probe.Thermal{}.Probe(context.Background(), hosttest.New(t))
	require.NotNil(t, empty.Err)
	assert.Equal(t, telemetry.KindUnavailable, empty.Err.Kind)
}

func TestDescriptorSupports(t *testing.T) {
	d := probe.Hwmon{}.Descriptor()
	assert.True(t, d.Supports("linux", false))
	assert.True(t, d.Supports("linux", true))
	assert.False(t, d.Supports("darwin", false))

	nvml := probe.NewNVML(nil).Descriptor()
	assert.False(t, nvml.Supports("linux", true))
}

func TestDefaultRegistryCoversEverySource(t *testing.T) {
	var ids []telemetry.SourceID
	for _, p := range probe.Default() {
		ids = append(ids, p.Descriptor().ID)
	}
	assert.Equal(t, telemetry.Sources, ids)
}
