// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
)

var (
	tempInputPattern = regexp.MustCompile(`^temp(\d+)_input$`)
	fanInputPattern  = regexp.MustCompile(`^fan(\d+)_input$`)
	pwmPattern       = regexp.MustCompile(`^pwm(\d+)$`)
)

// Chip identifies a kernel hardware-monitor device: a directory plus its
// "name" attribute and a best-effort vendor guess derived from the name.
type Chip struct {
	Path   string
	Name   string
	Vendor string
}

// TempInput is one tempN_input file, with optional label.
type TempInput struct {
	Chip      Chip
	Path      string
	Label     string
	Index     int
	LastValue float64 // degrees Celsius; keeps the last good reading while Available is false
	Available bool
}

// FanTach is one fanN_input file, with optional label.
type FanTach struct {
	Chip      Chip
	Path      string
	Label     string
	Index     int
	LastValue float64 // RPM; keeps the last good reading while Available is false
	Available bool
}

// PWMOutput is one pwmN file with its enable and max-raw siblings.
type PWMOutput struct {
	Chip       Chip
	Path       string       // .../pwmN
	EnablePath string       // .../pwmN_enable
	MaxRaw     int64        // default DefaultMaxRaw when no pwmN_max sibling
	Label      string
	Index      int
	LastRaw    int64
	Available  bool
}

// Inventory is the four semantic tables scan() and refresh_values() operate
// on. Identity of an entry is (chip path, file path); refresh never adds
// entries, only updates values in place or drops entries whose file
// disappeared.
type Inventory struct {
	Root  string
	Chips []Chip
	Temps []TempInput
	Fans  []FanTach
	PWMs  []PWMOutput
}

// Scan walks the hwmon tree once and returns a freshly populated inventory.
// It never mutates an existing Inventory; callers install the result via
// whatever takes an *Inventory (e.g. the engine's SetView).
func Scan(ctx context.Context, root string) (*Inventory, error) {
	if root == "" {
		root = DefaultHwmonPath
	}

	dirs, err := ListChipDirs(root)
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)

	inv := &Inventory{Root: root}

	for _, dir := range dirs {
		name, _ := ReadString(ctx, filepath.Join(dir, "name"))
		chip := Chip{Path: dir, Name: name, Vendor: guessVendor(name)}
		inv.Chips = append(inv.Chips, chip)

		attrs, err := ListAttributes(dir, "")
		if err != nil {
			continue
		}

		for _, attr := range attrs {
			switch {
			case tempInputPattern.MatchString(attr):
				idx := indexOf(tempInputPattern, attr)
				t := TempInput{
					Chip:  chip,
					Path:  filepath.Join(dir, attr),
					Index: idx,
					Label: readLabel(ctx, dir, fmt.Sprintf("temp%d_label", idx)),
				}
				inv.Temps = append(inv.Temps, t)
			case fanInputPattern.MatchString(attr):
				idx := indexOf(fanInputPattern, attr)
				f := FanTach{
					Chip:  chip,
					Path:  filepath.Join(dir, attr),
					Index: idx,
					Label: readLabel(ctx, dir, fmt.Sprintf("fan%d_label", idx)),
				}
				inv.Fans = append(inv.Fans, f)
			case pwmPattern.MatchString(attr):
				idx := indexOf(pwmPattern, attr)
				enablePath := filepath.Join(dir, fmt.Sprintf("pwm%d_enable", idx))
				maxRaw := int64(DefaultMaxRaw)
				if v, err := ReadInt(ctx, filepath.Join(dir, fmt.Sprintf("pwm%d_max", idx))); err == nil {
					maxRaw = v
				}
				p := PWMOutput{
					Chip:       chip,
					Path:       filepath.Join(dir, attr),
					EnablePath: enablePath,
					MaxRaw:     maxRaw,
					Index:      idx,
					Label:      readLabel(ctx, dir, fmt.Sprintf("pwm%d_label", idx)),
				}
				inv.PWMs = append(inv.PWMs, p)
			}
		}
	}

	inv.RefreshValues(ctx)
	return inv, nil
}

// RefreshValues re-reads the current value of every entry in place. An
// entry whose file now returns ErrNotFound is marked for drop and removed
// at the end of the pass; every other read failure (Parse, Io,
// PermissionDenied) merely leaves the entry's Available flag false while
// keeping the entry itself, per the invariant that refresh never discovers
// new entries nor drops an entry whose file still reads successfully.
func (inv *Inventory) RefreshValues(ctx context.Context) {
	temps := inv.Temps[:0]
	for _, t := range inv.Temps {
		raw, err := ReadInt(ctx, t.Path)
		if err != nil {
			if isNotFound(err) {
				continue // drop
			}
			t.Available = false
			temps = append(temps, t)
			continue
		}
		t.LastValue = float64(raw) / 1000.0
		t.Available = true
		temps = append(temps, t)
	}
	inv.Temps = temps

	fans := inv.Fans[:0]
	for _, f := range inv.Fans {
		raw, err := ReadInt(ctx, f.Path)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			f.Available = false
			fans = append(fans, f)
			continue
		}
		f.LastValue = float64(raw)
		f.Available = true
		fans = append(fans, f)
	}
	inv.Fans = fans

	pwms := inv.PWMs[:0]
	for _, p := range inv.PWMs {
		raw, err := ReadInt(ctx, p.Path)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			p.Available = false
			pwms = append(pwms, p)
			continue
		}
		p.LastRaw = raw
		p.Available = true
		pwms = append(pwms, p)
	}
	inv.PWMs = pwms
}

// FindTemp resolves a symbolic sensor source: either a direct sysfs path or
// a "chipname/tempN_input"-style identifier, whichever the source already
// carries.
func (inv *Inventory) FindTemp(path string) (*TempInput, bool) {
	for i := range inv.Temps {
		t := &inv.Temps[i]
		if t.Path == path || t.Chip.Name+"/"+filepath.Base(t.Path) == path {
			return t, true
		}
	}
	return nil, false
}

// FindPWM looks up a PWM entry by its duty-file path.
func (inv *Inventory) FindPWM(path string) (*PWMOutput, bool) {
	for i := range inv.PWMs {
		if inv.PWMs[i].Path == path {
			return &inv.PWMs[i], true
		}
	}
	return nil, false
}

// FansOnChip returns the tach entries that share a chip path with chipPath.
func (inv *Inventory) FansOnChip(chipPath string) []FanTach {
	var out []FanTach
	for _, f := range inv.Fans {
		if f.Chip.Path == chipPath {
			out = append(out, f)
		}
	}
	return out
}

func readLabel(ctx context.Context, dir, file string) string {
	label, _ := ReadString(ctx, filepath.Join(dir, file))
	return label
}

func indexOf(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	n := 0
	for _, c := range m[1] {
		n = n*10 + int(c-'0')
	}
	return n
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func guessVendor(name string) string {
	switch name {
	case "k10temp", "zenpower":
		return "amd"
	case "coretemp":
		return "intel"
	case "nct6775", "nct6776", "nct6779", "nct6791", "nct6792", "nct6793", "nct6795", "nct6796", "nct6797", "nct6798":
		return "nuvoton"
	case "it8620", "it8628", "it8686", "it8688":
		return "ite"
	default:
		return ""
	}
}
