package probe

import (
	"bufio"
	"context"
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/host"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

const (
	dmiRoot     = "/sys/class/dmi/id"
	meminfoPath = "/proc/meminfo"
)

// DMI reads board, BIOS and memory identity from the firmware tables.
// sysfs is tried first; dmidecode fills the gaps and lists memory modules.
type DMI struct{}

func (DMI) Descriptor() Descriptor {
	return Descriptor{ID: telemetry.SourceDMI, Platforms: linuxOnly, Local: true, Remote: true}
}

var chipsetRe = regexp.MustCompile(`\b([ABHQXZ]\d{2,3}[A-Z]?|TRX\d{2}|WRX\d{2})\b`)

func (DMI) Probe(ctx context.Context, h host.Host) Result {
	var (
		res     Result
		perr    *telemetry.ProbeError
		missing bool
	)

	board := readDMISysfs(ctx, h)
	res.Inventory.Memory.TotalBytes = readMemTotal(ctx, h)

	// record keeps the first failure worth reporting
	record := func(err error) {
		if errors.HasCode(err, host.ErrCommandNotFound) {
			missing = true
			return
		}
		if perr == nil {
			perr = failure(telemetry.SourceDMI, err, "dmidecode")
		}
	}

	if board.Manufacturer == "" || board.Product == "" {
		if recs, err := runDMIDecode(ctx, h, "2"); err != nil {
			record(err)
		} else if rec := findDMIRecord(recs, "Base Board Information"); rec != nil {
			fillString(&board.Manufacturer, rec["Manufacturer"])
			fillString(&board.Product, rec["Product Name"])
		}
	}

	if board.BIOSVersion == "" && !missing {
		if recs, err := runDMIDecode(ctx, h, "0"); err != nil {
			record(err)
		} else if rec := findDMIRecord(recs, "BIOS Information"); rec != nil {
			fillString(&board.BIOSVersion, rec["Version"])
			fillString(&board.BIOSDate, rec["Release Date"])
		}
	}

	if !missing {
		if recs, err := runDMIDecode(ctx, h, "17"); err != nil {
			record(err)
		} else {
			applyMemoryDevices(&res.Inventory.Memory, recs)
		}
	}

	if board.Chipset == "" {
		board.Chipset = chipsetHint(board.Product)
	}
	res.Inventory.Board = board

	if perr == nil && missing && board == (telemetry.Board{}) {
		perr = telemetry.NewProbeError(telemetry.SourceDMI, telemetry.KindUnavailable,
			"no firmware tables; dmidecode: "+detailNotInstalled)
	}
	res.Err = perr

	return res
}

func readDMISysfs(ctx context.Context, h host.Host) telemetry.Board {
	read := func(names ...string) string {
		for _, name := range names {
			if s, err := host.ReadString(ctx, h, dmiRoot+"/"+name); err == nil && usableDMI(s) {
				return s
			}
		}
		return ""
	}

	board := telemetry.Board{
		Manufacturer:  read("board_vendor", "sys_vendor", "chassis_vendor"),
		Product:       read("board_name", "product_name"),
		BIOSVersion:   read("bios_version"),
		BIOSDate:      read("bios_date"),
		ChassisVendor: read("chassis_vendor"),
	}

	if modalias := read("modalias"); modalias != "" {
		board.Chipset = chipsetHint(modaliasField(modalias, "rn"))
	}

	return board
}

// usableDMI filters the placeholders vendors leave in unused fields.
func usableDMI(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default string", "to be filled by o.e.m.", "not specified", "not applicable", "system product name", "none":
		return false
	}

	return true
}

// modaliasField returns one field of a DMI modalias such as
// "dmi:bvnAMI:bvr1.40:...:rnB550-APRO:...", e.g. "rn" for the board name.
func modaliasField(modalias, key string) string {
	for _, f := range strings.Split(strings.TrimPrefix(modalias, "dmi:"), ":") {
		if strings.HasPrefix(f, key) {
			return strings.TrimPrefix(f, key)
		}
	}

	return ""
}

func chipsetHint(product string) string {
	return chipsetRe.FindString(product)
}

func readMemTotal(ctx context.Context, h host.Host) uint64 {
	data, err := h.ReadFile(ctx, meminfoPath)
	if err != nil {
		return 0
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return 0
			}
			return kb * 1024
		}
	}

	return 0
}

// runDMIDecode runs dmidecode for one table type, retrying through
// non-interactive sudo when refused.
func runDMIDecode(ctx context.Context, h host.Host, table string) ([]map[string]string, error) {
	out, err := h.Run(ctx, "dmidecode", "-t", table)
	if errors.HasCode(err, host.ErrPermissionDenied) {
		var sudoErr error
		out, sudoErr = h.Run(ctx, "sudo", "-n", "dmidecode", "-t", table)
		if sudoErr != nil {
			return nil, err
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	return ParseDMIDecode(string(out)), nil
}

// ParseDMIDecode splits dmidecode output into records of "Field: Value"
// pairs. The record title, e.g. "Memory Device", is stored under "".
func ParseDMIDecode(out string) []map[string]string {
	var (
		records []map[string]string
		cur     map[string]string
	)

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "Handle "):
			cur = map[string]string{}
			records = append(records, cur)
		case cur == nil || trimmed == "":
		case !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, " "):
			cur[""] = trimmed
		case strings.HasPrefix(line, "\t\t"):
			// list continuation, e.g. under Characteristics
		default:
			key, value, ok := strings.Cut(trimmed, ":")
			if ok {
				cur[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}
	}

	return records
}

func findDMIRecord(records []map[string]string, title string) map[string]string {
	for _, r := range records {
		if r[""] == title {
			return r
		}
	}

	return nil
}

func applyMemoryDevices(mem *telemetry.Memory, records []map[string]string) {
	for _, r := range records {
		if r[""] != "Memory Device" {
			continue
		}

		size := r["Size"]
		if size == "" || strings.HasPrefix(size, "No Module") || strings.HasPrefix(size, "Not Installed") {
			continue
		}

		speed := r["Configured Memory Speed"]
		if !usableDMI(speed) || speed == "Unknown" {
			speed = r["Speed"]
		}

		module := telemetry.MemoryModule{
			Locator:      r["Locator"],
			Size:         size,
			Type:         r["Type"],
			Speed:        speed,
			Manufacturer: r["Manufacturer"],
		}
		mem.Modules = append(mem.Modules, module)
		fillString(&mem.Type, module.Type)
		if speed != "Unknown" {
			fillString(&mem.Speed, speed)
		}
	}
}

func fillString(dst *string, src string) {
	if *dst == "" && usableDMI(src) {
		*dst = src
	}
}
