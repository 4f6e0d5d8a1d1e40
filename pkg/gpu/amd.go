// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const rocmSMICmd = "rocm-smi"

// amdBackend shells out to rocm-smi -a --json, grounded on the wandb
// AMD GPU monitor's exec.Command + json.Unmarshal pattern. There is no
// Go binding for ROCm SMI in the example pack, so this backend talks to
// the CLI tool directly rather than invent a cgo binding.
type amdBackend struct {
	path string
}

// NewAMDBackend locates rocm-smi on PATH; it returns an error when the
// tool is not installed, so the daemon runs fine on non-AMD systems.
func NewAMDBackend() (Backend, error) {
	path, err := exec.LookPath(rocmSMICmd)
	if err != nil {
		return nil, fmt.Errorf("rocm-smi not found: %w", err)
	}
	return &amdBackend{path: path}, nil
}

func (b *amdBackend) Name() string { return "amd" }

func (b *amdBackend) Sample(ctx context.Context) ([]Sample, error) {
	cmd := exec.CommandContext(ctx, b.path, "-a", "--json")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("rocm-smi: %w", err)
	}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("rocm-smi output: %w", err)
	}

	var samples []Sample
	for cardKey, fields := range raw {
		if !strings.HasPrefix(cardKey, "card") {
			continue
		}
		s := Sample{Vendor: "amd", Name: stringField(fields, "Card series")}
		s.PCIBusID = stringField(fields, "PCI Bus")
		if temp, ok := parseFloatField(fields, "Temperature (Sensor edge) (C)"); ok {
			s.TemperatureC = temp
		}
		if fan, ok := parseFloatField(fields, "Fan speed (%)"); ok {
			s.FanPercent = fan
			s.FanAvailable = true
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func (b *amdBackend) Close() error { return nil }

func stringField(fields map[string]interface{}, key string) string {
	v, _ := fields[key].(string)
	return v
}

func parseFloatField(fields map[string]interface{}, key string) (float64, bool) {
	s, ok := fields[key].(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
