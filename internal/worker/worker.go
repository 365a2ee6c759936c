package worker

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/whisper-batch/worker/internal/events"
	"github.com/whisper-batch/worker/internal/gpu"
	"github.com/whisper-batch/worker/internal/history"
	"github.com/whisper-batch/worker/internal/manifest"
	"github.com/whisper-batch/worker/internal/output"
	"github.com/whisper-batch/worker/internal/whisper"
)

// DefaultProviderLabel names the engine in the start event when the manifest
// does not override it.
const DefaultProviderLabel = "faster-whisper"

// Worker drives manifest batches through a model provider, one file at a
// time, degrading the runtime configuration on memory exhaustion.
type Worker struct {
	provider whisper.Provider
	emitter  *events.Emitter
	history  *history.Store
}

// New creates a worker. The emitter owns the protocol stream.
func New(provider whisper.Provider, emitter *events.Emitter) *Worker {
	return &Worker{provider: provider, emitter: emitter}
}

// SetHistory enables recording run outcomes to a history store. History is
// an observer: store failures are logged, never fatal.
func (w *Worker) SetHistory(store *history.Store) {
	w.history = store
}

// runtime owns the loaded model bound to exactly one configuration. It is
// replaced wholesale on fallback, never mutated.
type runtime struct {
	model  whisper.Model
	config gpu.Config
}

func (w *Worker) loadRuntime(ctx context.Context, modelName string, config gpu.Config) (*runtime, error) {
	name := strings.TrimSpace(modelName)
	if name == "" {
		return nil, fmt.Errorf("model name must be a non-empty string")
	}

	model, err := w.provider.Load(ctx, name, config.Device, config.ComputeType)
	if err != nil {
		return nil, &ModelLoadError{Model: name, Device: config.Device, ComputeType: config.ComputeType, Err: err}
	}
	return &runtime{model: model, config: config}, nil
}

// Summary aggregates the outcome of one batch.
type Summary struct {
	SessionID       string
	Provider        string
	Model           string
	Device          gpu.Device
	ComputeType     gpu.ComputeType
	Total           int
	Processed       int
	Skipped         int
	Failed          int
	DurationSeconds float64
	Failures        []events.FailureRecord
}

// ProcessManifest transcribes every file the manifest lists, in order, and
// emits the protocol event stream. Per-file failures never abort the batch;
// the only caller-visible fatal condition after the manifest parses is the
// initial model load.
func (w *Worker) ProcessManifest(ctx context.Context, manifestPath, outputDir, defaultModel string) (*Summary, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		// Pre-flight: no events have been emitted yet.
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	sessionID := m.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	providerLabel := m.Provider
	if providerLabel == "" {
		providerLabel = DefaultProviderLabel
	}
	modelName := m.Model
	if modelName == "" {
		modelName = defaultModel
	}

	initial := gpu.Config{
		Device: gpu.CurrentDevice(),
	}
	initial.ComputeType = gpu.OptimalComputeType(initial.Device)

	total := len(m.Files)
	startedAt := time.Now()

	w.emitter.Start(sessionID, providerLabel, modelName, string(initial.Device), string(initial.ComputeType))
	w.emitter.Scanned(total)

	current, err := w.loadRuntime(ctx, modelName, initial)
	if err != nil {
		message := err.Error()
		w.emitter.FatalError(message)
		return nil, err
	}
	// current is rebound on fallback; close whichever model is last.
	defer func() { current.model.Close() }()

	w.emitter.ModelsLoaded()

	summary := &Summary{
		SessionID: sessionID,
		Provider:  providerLabel,
		Model:     modelName,
		Total:     total,
		Failures:  []events.FailureRecord{},
	}

	for index, entry := range m.Files {
		if entry.Path == "" {
			message := "manifest file entry is missing a valid path"
			summary.Failed++
			summary.Failures = append(summary.Failures, events.FailureRecord{File: "", Error: message})
			w.emitter.FileFailed(index, "", message, 1)
			w.recordFile(sessionID, "", "failed", message, 0, 0, events.OutputPaths{})
			continue
		}

		current = w.processFile(ctx, current, m, summary, index, entry, outputDir, modelName)
	}

	summary.Device = current.config.Device
	summary.ComputeType = current.config.ComputeType
	summary.DurationSeconds = time.Since(startedAt).Seconds()

	w.emitter.Summary(summary.Total, summary.Processed, summary.Skipped, summary.Failed, summary.DurationSeconds, summary.Failures)
	w.recordRun(summary)

	return summary, nil
}

// processFile runs the fallback controller for one file: attempt, classify
// failures, degrade the runtime along the fallback chain on memory
// exhaustion, and re-run the same file from scratch. Returns the runtime
// that is current afterwards (a fallback transition outlives the file).
func (w *Worker) processFile(ctx context.Context, current *runtime, m *manifest.Manifest, summary *Summary, index int, entry manifest.FileEntry, outputDir, modelName string) *runtime {
	relative := entry.Relative()
	w.emitter.FileStarted(index, summary.Total, entry.Path, relative)

	fileStarted := time.Now()
	attempts := 0

	fail := func(message string, attempts int) {
		summary.Failed++
		summary.Failures = append(summary.Failures, events.FailureRecord{File: entry.Path, Error: message})
		w.emitter.FileFailed(index, entry.Path, message, attempts)
		w.recordFile(summary.SessionID, entry.Path, "failed", message, 0, 0, events.OutputPaths{})
	}

	for {
		attempts++

		result, durationSeconds, confidence, err := w.transcribeOnce(ctx, current.model, entry.Path, index, fileStarted)
		if err == nil {
			processingSeconds := math.Max(time.Since(fileStarted).Seconds(), elapsedFloor)
			rtfx := durationSeconds / processingSeconds

			paths, writeErr := output.Write(outputDir, relative, result, m.Formats)
			if writeErr != nil {
				fail(writeErr.Error(), attempts)
				return current
			}

			w.emitter.FileDone(index, entry.Path, durationSeconds, processingSeconds, rtfx, confidence, paths)
			summary.Processed++
			w.recordFile(summary.SessionID, entry.Path, "done", "", durationSeconds, confidence, paths)
			return current
		}

		if !isResourceExhausted(err, current.config.Device) {
			fail(err.Error(), attempts)
			return current
		}

		next, ok := gpu.NextFallback(current.config.Device, current.config.ComputeType)
		if !ok {
			// Fallback chain exhausted.
			fail(err.Error(), attempts)
			return current
		}

		reason := fmt.Sprintf("GPU out of memory, retrying with %s", next.ComputeType)
		w.emitter.FileRetry(index, entry.Path, reason, string(next.Device), string(next.ComputeType))
		log.Printf("[worker] %s: %s -> %s/%s", entry.Path, reason, next.Device, next.ComputeType)

		reloaded, loadErr := w.loadRuntime(ctx, modelName, next)
		if loadErr != nil {
			// A reload failure is immediately terminal for the file.
			fail(loadErr.Error(), attempts+1)
			return current
		}

		current.model.Close()
		current = reloaded
	}
}

func (w *Worker) recordFile(sessionID, file, status, errorMessage string, durationSeconds, confidence float64, paths events.OutputPaths) {
	if w.history == nil {
		return
	}
	err := w.history.RecordFile(history.FileRecord{
		RunID:           sessionID,
		FilePath:        file,
		Status:          status,
		Error:           errorMessage,
		DurationSeconds: durationSeconds,
		Confidence:      confidence,
		OutputTxt:       paths.Txt,
		OutputJSON:      paths.JSON,
	})
	if err != nil {
		log.Printf("[worker] record file history: %v", err)
	}
}

func (w *Worker) recordRun(summary *Summary) {
	if w.history == nil {
		return
	}
	err := w.history.RecordRun(history.RunRecord{
		ID:              summary.SessionID,
		Provider:        summary.Provider,
		Model:           summary.Model,
		Device:          string(summary.Device),
		ComputeType:     string(summary.ComputeType),
		Total:           summary.Total,
		Processed:       summary.Processed,
		Failed:          summary.Failed,
		DurationSeconds: summary.DurationSeconds,
	})
	if err != nil {
		log.Printf("[worker] record run history: %v", err)
	}
}
