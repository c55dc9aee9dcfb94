package probe

import (
	"context"
	"path"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

const drmRoot = "/sys/class/drm"

// Lspci enumerates display adapters on the PCI bus and reads the first
// temperature the kernel exposes for each.
type Lspci struct{}

func (Lspci) Descriptor() Descriptor {
	return Descriptor{ID: telemetry.SourceLspci, Platforms: linuxOnly, Local: true, Remote: true}
}

// PCIDevice is one display-class line of `lspci -mm`.
type PCIDevice struct {
	Bus    string
	Class  string
	Vendor string
	Name   string
}

var (
	quotedFieldRe = regexp.MustCompile(`"([^"]*)"`)
	busAddrRe     = regexp.MustCompile(`(?:[0-9a-f]{4}:)?([0-9a-f]{2}:[0-9a-f]{2}\.[0-9a-f])$`)
)

var pciVendors = map[string]string{
	"0x10de": vendorNVIDIA,
	"0x1002": "AMD",
	"0x1022": "AMD",
	"0x8086": "Intel",
}

// ParseLspci returns the display-class devices in `lspci -mm` output.
func ParseLspci(out string) []PCIDevice {
	var devices []PCIDevice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		bus, rest, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}

		fields := quotedFieldRe.FindAllStringSubmatch(rest, -1)
		if len(fields) < 3 {
			continue
		}

		class := fields[0][1]
		if !isDisplayClass(class) {
			continue
		}

		devices = append(devices, PCIDevice{
			Bus:    shortBus(bus),
			Class:  class,
			Vendor: fields[1][1],
			Name:   fields[2][1],
		})
	}

	return devices
}

func isDisplayClass(class string) bool {
	return strings.Contains(class, "VGA") || strings.Contains(class, "3D") || strings.Contains(class, "Display")
}

// shortBus strips the PCI domain, "0000:01:00.0" becomes "01:00.0".
func shortBus(addr string) string {
	if m := busAddrRe.FindStringSubmatch(strings.ToLower(addr)); m != nil {
		return m[1]
	}

	return strings.ToLower(addr)
}

func (Lspci) Probe(ctx context.Context, h host.Host) Result {
	out, err := h.Run(ctx, "lspci", "-mm")
	if err != nil {
		return failedWith(telemetry.SourceLspci, err, "lspci")
	}

	devices := ParseLspci(string(out))
	if len(devices) == 0 {
		return Result{}
	}

	cards := drmDevices(ctx, h)

	var res Result
	for _, d := range devices {
		gpu := telemetry.GPUDevice{
			Bus:    d.Bus,
			Vendor: vendorFromString(d.Vendor),
			Name:   d.Name,
			Source: telemetry.SourceLspci,
		}

		devPath, ok := cards[d.Bus]
		if ok {
			if id, err := host.ReadString(ctx, h, devPath+"/vendor"); err == nil {
				if v, known := pciVendors[strings.ToLower(id)]; known {
					gpu.Vendor = v
				}
			}

			if r, found := firstHwmonTemperature(ctx, h, devPath, d.Bus); found {
				res.Readings = append(res.Readings, r)
			}
		}

		if gpu.Vendor == "Intel" {
			gpu.Integrated = true
		} else if ok {
			gpu.MemoryMiB = vramMiB(ctx, h, devPath)
		}

		res.Inventory.GPUs = append(res.Inventory.GPUs, gpu)
	}

	return res
}

// drmDevices maps short bus addresses to the resolved device directory of
// each DRM card.
func drmDevices(ctx context.Context, h host.Host) map[string]string {
	cards := make(map[string]string)

	entries, err := h.Glob(ctx, drmRoot+"/card*")
	if err != nil {
		return cards
	}

	for _, entry := range entries {
		// card0-HDMI-A-1 and friends are connectors
		if strings.Contains(path.Base(entry), "-") {
			continue
		}

		resolved, err := h.Realpath(ctx, entry+"/device")
		if err != nil {
			continue
		}

		if m := busAddrRe.FindStringSubmatch(path.Base(resolved)); m != nil {
			cards[m[1]] = resolved
		}
	}

	return cards
}

func firstHwmonTemperature(ctx context.Context, h host.Host, devPath, bus string) (telemetry.RawReading, bool) {
	inputs, err := h.Glob(ctx, devPath+"/hwmon/hwmon*/temp*_input")
	if err != nil {
		return telemetry.RawReading{}, false
	}

	for _, input := range inputs {
		v, err := host.ReadFloat(ctx, h, input)
		if err != nil {
			continue
		}

		label, err := host.ReadString(ctx, h, strings.TrimSuffix(input, "_input")+"_label")
		if err != nil || label == "" {
			label = strings.TrimSuffix(path.Base(input), "_input")
		}

		return telemetry.RawReading{
			Source: telemetry.SourceLspci,
			Device: "gpu@" + bus,
			Label:  label,
			Value:  v,
			Unit:   telemetry.RawTemperature,
		}, true
	}

	return telemetry.RawReading{}, false
}

// vramMiB reads the amdgpu VRAM size when the driver exposes it.
func vramMiB(ctx context.Context, h host.Host, devPath string) *float64 {
	s, err := host.ReadString(ctx, h, devPath+"/mem_info_vram_total")
	if err != nil {
		return nil
	}

	b, err := strconv.ParseFloat(s, 64)
	if err != nil || b <= 0 {
		return nil
	}
	mib := b / (1024 * 1024)

	return &mib
}

func vendorFromString(s string) string {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "nvidia"):
		return vendorNVIDIA
	case strings.Contains(lower, "advanced micro devices"), strings.Contains(lower, "amd"), strings.Contains(lower, "ati "):
		return "AMD"
	case strings.Contains(lower, "intel"):
		return "Intel"
	default:
		return s
	}
}
