// Package resolve merges classified readings into one value per metric and
// category.
package resolve

import (
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

// EnergyNote accompanies every resolved energy value.
const EnergyNote = "cumulative counter since boot, not instantaneous power"

// Priority lists sources per metric, most trusted first. Sources missing
// from a list rank after every listed one.
var Priority = map[telemetry.Metric][]telemetry.SourceID{
	telemetry.MetricTemperature: {
		telemetry.SourceNVML,
		telemetry.SourceNvidiaSMI,
		telemetry.SourceHwmon,
		telemetry.SourceThermal,
		telemetry.SourceSensors,
		telemetry.SourcePlatform,
		telemetry.SourceDMI,
		telemetry.SourceLspci,
	},
	telemetry.MetricVoltage: {
		telemetry.SourceHwmon,
		telemetry.SourceSensors,
		telemetry.SourcePlatform,
	},
	telemetry.MetricPower: {
		telemetry.SourceNVML,
		telemetry.SourceNvidiaSMI,
		telemetry.SourceHwmon,
		telemetry.SourceSensors,
		telemetry.SourcePlatform,
	},
	telemetry.MetricEnergy: {
		telemetry.SourceRAPL,
	},
}

func rank(m telemetry.Metric, source telemetry.SourceID) int {
	order := Priority[m]
	for i, s := range order {
		if s == source {
			return i
		}
	}

	return len(order)
}

// Pick selects the value for one metric and category. Readings are compared
// by scope first (aggregate, then unspecified, then per-component), then by
// source priority; the highest value among the remaining readings wins.
// The result does not depend on the order of readings.
func Pick(m telemetry.Metric, c telemetry.Category, readings []telemetry.Reading) (float64, bool) {
	var (
		best  float64
		found bool
		scope int
		src   int
	)

	for _, r := range readings {
		if r.Category != c || r.Unit.Metric() != m {
			continue
		}

		rs, rr := r.Scope.Rank(), rank(m, r.Source)
		switch {
		case !found,
			rs < scope,
			rs == scope && rr < src,
			rs == scope && rr == src && r.Value > best:
			best, scope, src, found = r.Value, rs, rr, true
		}
	}

	return best, found
}

// Fill sets every metric map of s from s.Readings. Categories without a
// surviving reading are set to nil.
func Fill(s *telemetry.Snapshot) {
	for _, m := range []telemetry.Metric{telemetry.MetricTemperature, telemetry.MetricVoltage, telemetry.MetricPower} {
		values := s.Metric(m)
		for _, c := range telemetry.Categories {
			if v, ok := Pick(m, c, s.Readings); ok {
				values[c] = &v
			} else {
				values[c] = nil
			}
		}
	}

	for _, c := range telemetry.Categories {
		if v, ok := Pick(telemetry.MetricEnergy, c, s.Readings); ok {
			s.Energy[c] = &telemetry.Energy{Joules: v, Cumulative: true, Note: EnergyNote}
		} else {
			s.Energy[c] = nil
		}
	}
}
