package telemetry

import "time"

// Snapshot is one point-in-time aggregation result. Every category is
// present in every metric map; nil means no reading survived.
type Snapshot struct {
	Target      Target                `json:"target"`
	CollectedAt time.Time             `json:"collected_at"`
	Temperature map[Category]*float64 `json:"temperature"`
	Voltage     map[Category]*float64 `json:"voltage"`
	Power       map[Category]*float64 `json:"power"`
	Energy      map[Category]*Energy  `json:"energy_cumulative"`
	Inventory   Inventory             `json:"inventory"`
	Readings    []Reading             `json:"readings"`
	Errors      []ProbeError          `json:"errors"`
}

// NewSnapshot returns an empty snapshot for target with all metrics null.
func NewSnapshot(target Target) Snapshot {
	s := Snapshot{
		Target:      target,
		CollectedAt: time.Now().UTC(),
		Temperature: make(map[Category]*float64, len(Categories)),
		Voltage:     make(map[Category]*float64, len(Categories)),
		Power:       make(map[Category]*float64, len(Categories)),
		Energy:      make(map[Category]*Energy, len(Categories)),
		Readings:    []Reading{},
		Errors:      []ProbeError{},
	}
	for _, c := range Categories {
		s.Temperature[c] = nil
		s.Voltage[c] = nil
		s.Power[c] = nil
		s.Energy[c] = nil
	}

	return s
}

// Metric returns the map backing m, nil for MetricEnergy.
func (s *Snapshot) Metric(m Metric) map[Category]*float64 {
	switch m {
	case MetricTemperature:
		return s.Temperature
	case MetricVoltage:
		return s.Voltage
	case MetricPower:
		return s.Power
	default:
		return nil
	}
}

// HasErrorKind reports whether source recorded an error of kind.
func (s *Snapshot) HasErrorKind(source SourceID, kind Kind) bool {
	for _, e := range s.Errors {
		if e.Source == source && e.Kind == kind {
			return true
		}
	}

	return false
}
