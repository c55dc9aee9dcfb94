// Package classify maps free-text sensor names and labels to hardware
// categories using ordered keyword tables.
package classify

import (
	"regexp"
	"strings"

	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

// Rule maps a keyword set to a category.
type Rule struct {
	Category telemetry.Category
	Keywords []string
}

// Rules is evaluated top to bottom; the first rule with a keyword found in
// either the device name or the label wins.
var Rules = []Rule{
	{telemetry.CategoryCPU, []string{"package", "core", "vcore", "cpu", "pkg", "tctl", "tdie", "k10temp", "zenpower"}},
	{telemetry.CategoryGPU, []string{"gpu", "nvidia", "amd", "radeon", "nouveau", "i915"}},
	{telemetry.CategoryVRM, []string{"vrm", "vreg", "vcore-regulator"}},
	{telemetry.CategoryMemory, []string{"dram", "ram", "memory", "dimm", "sodimm"}},
	{telemetry.CategoryStorage, []string{"nvme", "drivetemp", "ssd", "hdd", "sata"}},
	{telemetry.CategoryMotherboard, []string{"acpitz", "pch", "chipset", "systin", "motherboard", "mobo", "nct", "it87", "w83", "f71"}},
}

// Category classifies a reading by device name and label.
func Category(device, label string) telemetry.Category {
	return CategoryWith(Rules, device, label)
}

// CategoryWith classifies against a caller-supplied table.
func CategoryWith(rules []Rule, device, label string) telemetry.Category {
	device = strings.ToLower(device)
	label = strings.ToLower(label)

	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(device, kw) || strings.Contains(label, kw) {
				return rule.Category
			}
		}
	}

	return telemetry.CategoryOther
}

var (
	aggregateKeywords = []string{"package", "pkg", "tctl", "tdie", "composite", "total"}
	componentPattern  = regexp.MustCompile(`(?i)(core|ccd|channel|dimm|sensor)\s*#?\s*\d+`)
)

// Scope tells whether label names a whole device or one of its parts.
func Scope(label string) telemetry.Scope {
	lower := strings.ToLower(label)
	for _, kw := range aggregateKeywords {
		if strings.Contains(lower, kw) {
			return telemetry.ScopeAggregate
		}
	}

	if componentPattern.MatchString(label) {
		return telemetry.ScopeComponent
	}

	return telemetry.ScopeUnspecified
}
