package gpu

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Device is a compute device a model can be bound to.
type Device string

// ComputeType is the numeric precision a model runs at.
type ComputeType string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"

	ComputeInt8        ComputeType = "int8"
	ComputeFloat16     ComputeType = "float16"
	ComputeInt8Float16 ComputeType = "int8_float16"
)

// LowVRAMThresholdGb is the cutoff below which CUDA cards get the
// reduced-precision compute type.
const LowVRAMThresholdGb = 6.0

// Info holds detected CUDA hardware information.
type Info struct {
	Available bool    `json:"available"`
	Device    string  `json:"device"`  // e.g. "NVIDIA GPU 0000:01:00.0"
	VRAMGb    float64 `json:"vram_gb"` // 0 if unknown
	Driver    string  `json:"driver"`  // e.g. "nvidia"
}

var (
	cachedInfo *Info
	detectOnce sync.Once
)

// CUDAInfo probes the system for an NVIDIA GPU with VRAM info via sysfs.
// Uses sync.Once — safe to call multiple times.
func CUDAInfo() *Info {
	detectOnce.Do(func() {
		cachedInfo = detect()
		log.Printf("[gpu] detected: available=%v device=%q vram=%.1f GB driver=%s",
			cachedInfo.Available, cachedInfo.Device, cachedInfo.VRAMGb, cachedInfo.Driver)
	})
	return cachedInfo
}

func detect() *Info {
	info := &Info{}

	cards, err := filepath.Glob("/sys/class/drm/card[0-9]*")
	if err != nil {
		return info
	}

	for _, card := range cards {
		// Skip render nodes (cardN-XXX)
		base := filepath.Base(card)
		if strings.Contains(base, "-") {
			continue
		}

		deviceDir := filepath.Join(card, "device")

		driverLink, err := os.Readlink(filepath.Join(deviceDir, "driver"))
		if err != nil {
			continue
		}
		driver := filepath.Base(driverLink)
		if driver != "nvidia" {
			continue
		}

		info.Available = true
		info.Driver = driver
		info.Device = readDeviceName(deviceDir)

		vramPath := filepath.Join(deviceDir, "mem_info_vram_total")
		if vramBytes, err := readSysfsInt(vramPath); err == nil && vramBytes > 0 {
			info.VRAMGb = float64(vramBytes) / (1024.0 * 1024.0 * 1024.0)
		}
		break
	}

	return info
}

// CurrentDevice reports the device the batch should start on. The
// FASTER_WHISPER_FORCE_DEVICE env var overrides hardware detection.
func CurrentDevice() Device {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("FASTER_WHISPER_FORCE_DEVICE"))) {
	case string(DeviceCPU):
		return DeviceCPU
	case string(DeviceCUDA):
		return DeviceCUDA
	}

	if CUDAInfo().Available {
		return DeviceCUDA
	}
	return DeviceCPU
}

// OptimalComputeType picks the starting precision for a device. The
// FASTER_WHISPER_COMPUTE_TYPE env var overrides the heuristic, and
// FASTER_WHISPER_CUDA_VRAM_GB overrides the probed VRAM size.
func OptimalComputeType(device Device) ComputeType {
	if override := strings.ToLower(strings.TrimSpace(os.Getenv("FASTER_WHISPER_COMPUTE_TYPE"))); override != "" {
		return ComputeType(override)
	}

	if device != DeviceCUDA {
		return ComputeInt8
	}

	vram := vramGb()
	if vram > 0 && vram < LowVRAMThresholdGb {
		return ComputeInt8Float16
	}
	return ComputeFloat16
}

func vramGb() float64 {
	if raw := strings.TrimSpace(os.Getenv("FASTER_WHISPER_CUDA_VRAM_GB")); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			return value
		}
	}
	return CUDAInfo().VRAMGb
}

func readSysfsInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

func readDeviceName(deviceDir string) string {
	data, err := os.ReadFile(filepath.Join(deviceDir, "uevent"))
	if err != nil {
		return "Unknown GPU"
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "PCI_SLOT_NAME=") {
			return "NVIDIA GPU " + strings.TrimPrefix(line, "PCI_SLOT_NAME=")
		}
	}
	return "Unknown GPU"
}
