package probe

import (
	"context"

	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/logger"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"github.com/jaypipes/ghw"
	pshost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Platform covers local machines without a sysfs, using the operating
// system's own sensor and firmware interfaces.
type Platform struct {
	temperatures  func(context.Context) ([]pshost.TemperatureStat, error)
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
	baseboard     func() (*ghw.BaseboardInfo, error)
	bios          func() (*ghw.BIOSInfo, error)
	chassis       func() (*ghw.ChassisInfo, error)
}

func NewPlatform() *Platform {
	return &Platform{
		temperatures:  pshost.SensorsTemperaturesWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		baseboard:     func() (*ghw.BaseboardInfo, error) { return ghw.Baseboard(ghw.WithDisableWarnings()) },
		bios:          func() (*ghw.BIOSInfo, error) { return ghw.BIOS(ghw.WithDisableWarnings()) },
		chassis:       func() (*ghw.ChassisInfo, error) { return ghw.Chassis(ghw.WithDisableWarnings()) },
	}
}

func (*Platform) Descriptor() Descriptor {
	return Descriptor{
		ID:        telemetry.SourcePlatform,
		Platforms: []string{"darwin", "windows", "freebsd", "openbsd", "netbsd"},
		Local:     true,
	}
}

func (p *Platform) Probe(ctx context.Context, _ host.Host) Result {
	var res Result

	// gopsutil returns partial results together with warnings
	temps, tempErr := p.temperatures(ctx)
	if tempErr != nil {
		logger.Debug().Err(tempErr).Msg("Platform sensors reported warnings")
	}
	for _, t := range temps {
		r := telemetry.RawReading{
			Source: telemetry.SourcePlatform,
			Device: t.SensorKey,
			Label:  t.SensorKey,
			Value:  t.Temperature,
			Unit:   telemetry.RawDegree,
		}
		if t.Critical > 0 {
			r.Critical = floatPtr(t.Critical)
		}
		if t.High > 0 {
			r.Max = floatPtr(t.High)
		}
		res.Readings = append(res.Readings, r)
	}

	if vm, err := p.virtualMemory(ctx); err == nil && vm != nil {
		res.Inventory.Memory.TotalBytes = vm.Total
	}

	if bb, err := p.baseboard(); err == nil && bb != nil {
		res.Inventory.Board.Manufacturer = cleanPlatformString(bb.Vendor)
		res.Inventory.Board.Product = cleanPlatformString(bb.Product)
	}
	if b, err := p.bios(); err == nil && b != nil {
		res.Inventory.Board.BIOSVersion = cleanPlatformString(b.Version)
		res.Inventory.Board.BIOSDate = cleanPlatformString(b.Date)
	}
	if c, err := p.chassis(); err == nil && c != nil {
		res.Inventory.Board.ChassisVendor = cleanPlatformString(c.Vendor)
	}
	res.Inventory.Board.Chipset = chipsetHint(res.Inventory.Board.Product)

	if len(res.Readings) == 0 && res.Inventory.Board == (telemetry.Board{}) && res.Inventory.Memory.TotalBytes == 0 {
		detail := "no platform sensors"
		if tempErr != nil {
			detail = tempErr.Error()
		}
		res.Err = telemetry.NewProbeError(telemetry.SourcePlatform, telemetry.KindUnavailable, detail)
	}

	return res
}

// cleanPlatformString drops ghw's "unknown" placeholder.
func cleanPlatformString(s string) string {
	if s == "unknown" || !usableDMI(s) {
		return ""
	}

	return s
}

func floatPtr(v float64) *float64 {
	return &v
}
