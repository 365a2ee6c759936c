package worker

import (
	"fmt"
	"strings"

	"github.com/whisper-batch/worker/internal/gpu"
)

// ModelLoadError wraps any failure to construct a runtime handle, carrying
// the attempted (model, device, compute type) triple. Wrapping is uniform
// regardless of cause; callers distinguish memory exhaustion by message only.
type ModelLoadError struct {
	Model       string
	Device      gpu.Device
	ComputeType gpu.ComputeType
	Err         error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model %q with %s/%s: %v", e.Model, e.Device, e.ComputeType, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// isResourceExhausted checks if an error message indicates GPU out-of-memory.
// Best-effort: a false negative costs an avoidable permanent failure, a false
// positive costs an unnecessary reload. CPU failures are never memory retries.
func isResourceExhausted(err error, device gpu.Device) bool {
	if err == nil || device != gpu.DeviceCUDA {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "out of memory") || strings.Contains(message, "cuda oom")
}
