package probe_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/gpu"
	"codeberg.org/mutker/hwsnap/internal/host/hosttest"
	"codeberg.org/mutker/hwsnap/internal/probe"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGPUReader struct {
	devices []gpu.Device
	err     error
	delay   time.Duration
}

func (f fakeGPUReader) Devices() ([]gpu.Device, error) {
	time.Sleep(f.delay)
	return f.devices, f.err
}

func f64(v float64) *float64 { return &v }

func TestNVMLProbe(t *testing.T) {
	reader := fakeGPUReader{devices: []gpu.Device{{
		Index:           0,
		Name:            "NVIDIA GeForce RTX 3080",
		BusID:           "0000:01:00.0",
		MemoryMiB:       f64(10240),
		Temperature:     f64(62),
		SlowdownTemp:    f64(93),
		ShutdownTemp:    f64(98),
		PowerMilliwatts: f64(215340),
	}}}

	res := probe.NewNVML(reader).Probe(context.Background(), hosttest.New(t))
	require.Nil(t, res.Err)
	require.Len(t, res.Readings, 2)

	temp := res.Readings[0]
	assert.Equal(t, telemetry.RawDegree, temp.Unit)
	assert.Equal(t, 62.0, temp.Value)
	assert.Equal(t, 98.0, *temp.Critical)
	assert.Equal(t, 93.0, *temp.Max)

	power := res.Readings[1]
	assert.Equal(t, telemetry.RawMilliwatt, power.Unit)
	assert.Equal(t, 215340.0, power.Value)

	require.Len(t, res.Inventory.GPUs, 1)
	assert.Equal(t, "0000:01:00.0", res.Inventory.GPUs[0].Bus)
	assert.Equal(t, telemetry.SourceNVML, res.Inventory.GPUs[0].Source)
}

func TestNVMLProbeErrors(t *testing.T) {
	errFactory := errors.New()
	tests := []struct {
		name string
		err  error
		kind telemetry.Kind
	}{
		{"no driver", errFactory.New(gpu.ErrLibraryNotFound), telemetry.KindUnavailable},
		{"no permission", errFactory.New(gpu.ErrNoPermission), telemetry.KindPermissionDenied},
		{"other", errFactory.New(gpu.ErrInitFailed), telemetry.KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := probe.NewNVML(fakeGPUReader{err: tt.err}).Probe(context.Background(), hosttest.New(t))
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind)
		})
	}

	empty := probe.NewNVML(fakeGPUReader{}).Probe(context.Background(), hosttest.New(t))
	require.NotNil(t, empty.Err)
	assert.Equal(t, telemetry.KindUnavailable, empty.Err.Kind)
}

func TestNVMLProbeHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := probe.NewNVML(fakeGPUReader{delay: time.Second}).Probe(ctx, hosttest.New(t))
	require.NotNil(t, res.Err)
	assert.Equal(t, telemetry.KindTimeout, res.Err.Kind)
}
