package telemetry

// Category is the hardware class a reading is attributed to.
type Category string

const (
	CategoryCPU         Category = "cpu"
	CategoryGPU         Category = "gpu"
	CategoryMemory      Category = "memory"
	CategoryVRM         Category = "vrm"
	CategoryMotherboard Category = "motherboard"
	CategoryStorage     Category = "storage"
	CategoryOther       Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryCPU,
	CategoryGPU,
	CategoryMemory,
	CategoryVRM,
	CategoryMotherboard,
	CategoryStorage,
	CategoryOther,
}

// IsValid returns whether c is one of the fixed categories
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}

	return false
}

// Unit is a canonical unit of a normalized reading.
type Unit string

const (
	UnitCelsius Unit = "°C"
	UnitVolt    Unit = "V"
	UnitWatt    Unit = "W"
	UnitJoule   Unit = "J"
)

// Metric is the snapshot map a reading resolves into.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricVoltage     Metric = "voltage"
	MetricPower       Metric = "power"
	MetricEnergy      Metric = "energy"
)

// Metric returns the snapshot metric measured in u.
func (u Unit) Metric() Metric {
	switch u {
	case UnitCelsius:
		return MetricTemperature
	case UnitVolt:
		return MetricVoltage
	case UnitWatt:
		return MetricPower
	default:
		return MetricEnergy
	}
}

// RawUnit is the unit a source reported a value in, before normalization.
type RawUnit string

const (
	RawMillidegree RawUnit = "millidegree"
	RawDegree      RawUnit = "degree"
	// RawTemperature lets the normalizer decide between degree and millidegree.
	RawTemperature RawUnit = "temperature"
	RawMillivolt   RawUnit = "millivolt"
	RawVolt        RawUnit = "volt"
	// RawVoltage lets the normalizer guess the scale, see units.Voltage.
	RawVoltage    RawUnit = "voltage"
	RawMicrowatt  RawUnit = "microwatt"
	RawMilliwatt  RawUnit = "milliwatt"
	RawWatt       RawUnit = "watt"
	RawMicrojoule RawUnit = "microjoule"
)

// Scope tells whether a reading covers a whole device or one component of it.
type Scope string

const (
	ScopeAggregate   Scope = "aggregate"
	ScopeUnspecified Scope = "unspecified"
	ScopeComponent   Scope = "component"
)

// Rank orders scopes for resolution, lower wins.
func (s Scope) Rank() int {
	switch s {
	case ScopeAggregate:
		return 0
	case ScopeComponent:
		return 2
	default:
		return 1
	}
}

// SourceID identifies a probe.
type SourceID string

const (
	SourceNVML      SourceID = "nvml"
	SourceNvidiaSMI SourceID = "nvidia-smi"
	SourceHwmon     SourceID = "hwmon"
	SourceThermal   SourceID = "thermal"
	SourceSensors   SourceID = "sensors"
	SourcePlatform  SourceID = "platform"
	SourceDMI       SourceID = "dmi"
	SourceLspci     SourceID = "lspci"
	SourceRAPL      SourceID = "rapl"
	// SourceRemote attributes failures of the remote session itself.
	SourceRemote SourceID = "remote"
)

// Sources lists every probe source in registry order.
var Sources = []SourceID{
	SourceNVML,
	SourceNvidiaSMI,
	SourceHwmon,
	SourceThermal,
	SourceSensors,
	SourcePlatform,
	SourceDMI,
	SourceLspci,
	SourceRAPL,
}

// RawReading is a value as a probe found it.
type RawReading struct {
	Source   SourceID
	Device   string
	Label    string
	Value    float64
	Unit     RawUnit
	Critical *float64
	Max      *float64
}

// Reading is a normalized and classified sensor value. Readings are never
// modified after construction.
type Reading struct {
	Source     SourceID `json:"source"`
	Device     string   `json:"device"`
	Category   Category `json:"category"`
	Label      string   `json:"label"`
	Value      float64  `json:"value"`
	Unit       Unit     `json:"unit"`
	Critical   *float64 `json:"critical"`
	Max        *float64 `json:"max"`
	Scope      Scope    `json:"scope"`
	Cumulative bool     `json:"cumulative,omitempty"`
	Heuristic  bool     `json:"heuristic,omitempty"`
}

// Energy is a cumulative energy counter value.
type Energy struct {
	Joules     float64 `json:"joules"`
	Cumulative bool    `json:"cumulative"`
	Note       string  `json:"note,omitempty"`
}

// TargetKind distinguishes the local machine from a remote one.
type TargetKind string

const (
	TargetLocal  TargetKind = "local"
	TargetRemote TargetKind = "remote"
)

// Target describes the machine a snapshot was taken from.
type Target struct {
	Kind     TargetKind `json:"kind"`
	Hostname string     `json:"hostname,omitempty"`
	Address  string     `json:"address,omitempty"`
	User     string     `json:"user,omitempty"`
	OS       string     `json:"os,omitempty"`
	Platform string     `json:"platform,omitempty"`
	Kernel   string     `json:"kernel,omitempty"`
}

// RemoteTarget is where a remote snapshot connects to.
type RemoteTarget struct {
	Host string
	User string
	// IP overrides Host for dialing when set.
	IP   string
	Port int
}

// DialHost returns the host part used for dialing.
func (r RemoteTarget) DialHost() string {
	if r.IP != "" {
		return r.IP
	}

	return r.Host
}
