package worker

import (
	"encoding/json"
	"os"

	"github.com/whisper-batch/worker/internal/gpu"
	"github.com/whisper-batch/worker/internal/whisper"
)

// Capabilities advertises what this worker supports, for consumers that
// select a provider before submitting a manifest.
type Capabilities struct {
	SupportedModels    []string        `json:"supported_models"`
	WordTimestamps     bool            `json:"word_timestamps"`
	SpeakerDiarization bool            `json:"speaker_diarization"`
	LanguageDetection  bool            `json:"language_detection"`
	Translation        bool            `json:"translation"`
	Languages          []string        `json:"languages"`
	SpeedEstimate      float64         `json:"speed_estimate"`
	Device             gpu.Device      `json:"device"`
	ComputeType        gpu.ComputeType `json:"compute_type"`
	FallbackChain      []gpu.Config    `json:"fallback_chain"`
}

// CurrentCapabilities reports capabilities for the detected hardware.
func CurrentCapabilities() Capabilities {
	device := gpu.CurrentDevice()
	computeType := gpu.OptimalComputeType(device)

	speed := 0.4
	if device == gpu.DeviceCUDA {
		speed = 0.1
	}

	return Capabilities{
		SupportedModels:    whisper.AvailableModels,
		WordTimestamps:     true,
		SpeakerDiarization: false,
		LanguageDetection:  true,
		Translation:        true,
		Languages:          whisper.Languages,
		SpeedEstimate:      speed,
		Device:             device,
		ComputeType:        computeType,
		FallbackChain:      gpu.FallbackChain(device, computeType),
	}
}

// PrintCapabilities writes the capabilities payload to stdout as one JSON line.
func PrintCapabilities() error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(CurrentCapabilities())
}
