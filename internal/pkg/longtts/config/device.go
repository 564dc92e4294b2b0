package config

import (
	"errors"
	"os"
	"os/exec"
)

const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

var ErrUnknownDevice = errors.New("config: unknown device")

// Probe reports whether a CUDA-capable accelerator is present.
type Probe func() bool

// DetectCUDA looks for the NVIDIA kernel driver or nvidia-smi on PATH.
func DetectCUDA() bool {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}
	if _, err := exec.LookPath("nvidia-smi"); err == nil {
		return true
	}
	return false
}

func ResolveDevice(requested string, probe Probe) (string, error) {
	switch requested {
	case DeviceCUDA, DeviceCPU:
		return requested, nil
	case DeviceAuto, "":
		if probe != nil && probe() {
			return DeviceCUDA, nil
		}
		return DeviceCPU, nil
	default:
		return "", ErrUnknownDevice
	}
}
