package probe

import "codeberg.org/mutker/hwsnap/internal/gpu"

// Default returns every probe in registry order.
func Default() []Probe {
	return []Probe{
		NewNVML(gpu.NewReader()),
		NvidiaSMI{},
		Hwmon{},
		Thermal{},
		Sensors{},
		NewPlatform(),
		DMI{},
		Lspci{},
		RAPL{},
	}
}
