// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"context"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvidiaBackend samples GPUs through NVML, grounded on the
// nvml.Init/DeviceGetCount/DeviceGetTemperature/DeviceGetFanSpeed_v2
// call sequence used by the reference NVIDIA fan-control tool.
type nvidiaBackend struct{}

// NewNVIDIABackend initializes NVML; it returns an error (not a panic)
// when no NVIDIA driver is loaded, so the daemon runs fine without one.
func NewNVIDIABackend() (Backend, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvml init: %v", nvml.ErrorString(ret))
	}
	return nvidiaBackend{}, nil
}

func (nvidiaBackend) Name() string { return "nvidia" }

func (nvidiaBackend) Sample(ctx context.Context) ([]Sample, error) {
	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("nvml device count: %v", nvml.ErrorString(ret))
	}

	samples := make([]Sample, 0, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}

		name, _ := nvml.DeviceGetName(device)
		pciInfo, pciRet := nvml.DeviceGetPciInfo(device)

		s := Sample{Vendor: "nvidia", Name: name}
		if pciRet == nvml.SUCCESS {
			s.PCIBusID = pciBusIDString(pciInfo)
		}

		if temp, ret := nvml.DeviceGetTemperature(device, nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
			s.TemperatureC = float64(temp)
		}

		if speed, ret := nvml.DeviceGetFanSpeed_v2(device, 0); ret == nvml.SUCCESS {
			s.FanPercent = float64(speed)
			s.FanAvailable = true
		} else if speed, ret := nvml.DeviceGetFanSpeed(device); ret == nvml.SUCCESS {
			s.FanPercent = float64(speed)
			s.FanAvailable = true
		}

		samples = append(samples, s)
	}
	return samples, nil
}

func (nvidiaBackend) Close() error {
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("nvml shutdown: %v", nvml.ErrorString(ret))
	}
	return nil
}

func pciBusIDString(info nvml.PciInfo) string {
	b := make([]byte, 0, len(info.BusId))
	for _, c := range info.BusId {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
