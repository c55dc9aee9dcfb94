package telemetry

// Inventory is static hardware identity gathered alongside sensor values.
type Inventory struct {
	Board  Board       `json:"board"`
	Memory Memory      `json:"memory"`
	GPUs   []GPUDevice `json:"gpus"`
}

type Board struct {
	Manufacturer  string `json:"manufacturer,omitempty"`
	Product       string `json:"product,omitempty"`
	BIOSVersion   string `json:"bios_version,omitempty"`
	BIOSDate      string `json:"bios_date,omitempty"`
	ChassisVendor string `json:"chassis_vendor,omitempty"`
	// Chipset is a hint derived from the firmware modalias, not a probe result.
	Chipset string `json:"chipset,omitempty"`
}

type Memory struct {
	TotalBytes uint64         `json:"total_bytes,omitempty"`
	Type       string         `json:"type,omitempty"`
	Speed      string         `json:"speed,omitempty"`
	Modules    []MemoryModule `json:"modules,omitempty"`
}

type MemoryModule struct {
	Locator      string `json:"locator,omitempty"`
	Size         string `json:"size,omitempty"`
	Type         string `json:"type,omitempty"`
	Speed        string `json:"speed,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

// GPUDevice is a display adapter. MemoryMiB is nil when unknown and for
// integrated adapters, which share system memory.
type GPUDevice struct {
	Bus        string   `json:"bus,omitempty"`
	Vendor     string   `json:"vendor,omitempty"`
	Name       string   `json:"name"`
	MemoryMiB  *float64 `json:"memory_mib"`
	Integrated bool     `json:"integrated"`
	Source     SourceID `json:"source"`
}

// Merge fills fields of inv that are still empty from other. GPUs are
// appended; deduplication is left to the caller.
func (inv *Inventory) Merge(other Inventory) {
	fill(&inv.Board.Manufacturer, other.Board.Manufacturer)
	fill(&inv.Board.Product, other.Board.Product)
	fill(&inv.Board.BIOSVersion, other.Board.BIOSVersion)
	fill(&inv.Board.BIOSDate, other.Board.BIOSDate)
	fill(&inv.Board.ChassisVendor, other.Board.ChassisVendor)
	fill(&inv.Board.Chipset, other.Board.Chipset)

	if inv.Memory.TotalBytes == 0 {
		inv.Memory.TotalBytes = other.Memory.TotalBytes
	}
	fill(&inv.Memory.Type, other.Memory.Type)
	fill(&inv.Memory.Speed, other.Memory.Speed)
	if len(inv.Memory.Modules) == 0 {
		inv.Memory.Modules = other.Memory.Modules
	}

	inv.GPUs = append(inv.GPUs, other.GPUs...)
}

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
