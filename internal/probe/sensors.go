package probe

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

// Sensors parses the output of lm-sensors' `sensors -A`.
type Sensors struct{}

func (Sensors) Descriptor() Descriptor {
	return Descriptor{ID: telemetry.SourceSensors, Platforms: linuxOnly, Local: true, Remote: true}
}

func (Sensors) Probe(ctx context.Context, h host.Host) Result {
	out, err := h.Run(ctx, "sensors", "-A")
	if err != nil {
		return failedWith(telemetry.SourceSensors, err, "sensors")
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return failed(telemetry.SourceSensors, telemetry.KindUnavailable, "no sensors detected")
	}

	readings := ParseSensors(text)
	if len(readings) == 0 {
		return failed(telemetry.SourceSensors, telemetry.KindParseError, "no readings in sensors output")
	}

	return Result{Readings: readings}
}

var (
	sensorsLineRe = regexp.MustCompile(`^\s*([^:]+?):\s+([+-]?\d+(?:\.\d+)?)\s*(?:Â)?(°C|C|mV|V|mW|W)(.*)$`)
	thresholdRe   = regexp.MustCompile(`\b(crit|max|high)\s*=\s*([+-]?\d+(?:\.\d+)?)`)
)

var sensorsUnits = map[string]telemetry.RawUnit{
	"°C": telemetry.RawDegree,
	"C":  telemetry.RawDegree,
	"mV": telemetry.RawMillivolt,
	"V":  telemetry.RawVolt,
	"mW": telemetry.RawMilliwatt,
	"W":  telemetry.RawWatt,
}

// ParseSensors extracts readings from `sensors -A` text. A line without a
// colon starts a chip block; indented "(crit = ...)" lines continue the
// previous reading.
func ParseSensors(text string) []telemetry.RawReading {
	var (
		out  []telemetry.RawReading
		chip string
		// last is the index of the previous reading in the current block
		last = -1
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			chip, last = "", -1
			continue
		case strings.HasPrefix(trimmed, "Adapter:"):
			continue
		case strings.HasPrefix(trimmed, "("):
			if last >= 0 {
				applyThresholds(&out[last], trimmed)
			}
			continue
		case !strings.Contains(trimmed, ":") && line == trimmed:
			chip, last = trimmed, -1
			continue
		}

		m := sensorsLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		r := telemetry.RawReading{
			Source: telemetry.SourceSensors,
			Device: chip,
			Label:  strings.TrimSpace(m[1]),
			Value:  v,
			Unit:   sensorsUnits[m[3]],
		}
		applyThresholds(&r, m[4])
		out = append(out, r)
		last = len(out) - 1
	}

	return out
}

func applyThresholds(r *telemetry.RawReading, rest string) {
	var high *float64
	for _, m := range thresholdRe.FindAllStringSubmatch(rest, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}

		switch m[1] {
		case "crit":
			r.Critical = &v
		case "max":
			r.Max = &v
		case "high":
			high = &v
		}
	}

	if r.Max == nil {
		r.Max = high
	}
}
