package events

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"sync"
	"time"
)

// OutputPaths maps requested output formats to written artifact paths.
type OutputPaths struct {
	Txt  string `json:"txt,omitempty"`
	JSON string `json:"json,omitempty"`
}

// FailureRecord is one per-file failure carried in the final summary.
type FailureRecord struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Emitter writes newline-delimited JSON protocol events. Events are
// append-only: once written they are never revised or retracted.
type Emitter struct {
	mu  sync.Mutex
	w   io.Writer
	bus *Bus
	now func() time.Time
}

// NewEmitter creates an emitter writing to w (stdout in production).
func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{w: w, now: time.Now}
}

// SetBus additionally publishes every event to an in-memory bus so the
// status server can replay them to polling consumers.
func (e *Emitter) SetBus(bus *Bus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bus = bus
}

// Every event carries the type tag and a UTC timestamp with a Z suffix.
type header struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

func (e *Emitter) head(event string) header {
	return header{
		Event:     event,
		Timestamp: e.now().UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
	}
}

func (e *Emitter) emit(v any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Printf("[events] marshal event: %v", err)
		return
	}

	if _, err := e.w.Write(buf.Bytes()); err != nil {
		log.Printf("[events] write event: %v", err)
	}
	if e.bus != nil {
		e.bus.Publish(bytes.TrimSpace(buf.Bytes()))
	}
}

type startEvent struct {
	header
	SessionID   string `json:"session_id"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Device      string `json:"device"`
	ComputeType string `json:"compute_type"`
}

// Start announces the batch identity and initial runtime configuration.
func (e *Emitter) Start(sessionID, provider, model, device, computeType string) {
	e.emit(startEvent{e.head("start"), sessionID, provider, model, device, computeType})
}

type scannedEvent struct {
	header
	Total int `json:"total"`
}

// Scanned reports how many manifest entries the batch will walk.
func (e *Emitter) Scanned(total int) {
	e.emit(scannedEvent{e.head("scanned"), total})
}

// ModelsLoaded signals that the initial runtime handle is ready.
func (e *Emitter) ModelsLoaded() {
	e.emit(e.head("models_loaded"))
}

type fileStartedEvent struct {
	header
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	File     string `json:"file"`
	Relative string `json:"relative"`
}

func (e *Emitter) FileStarted(index, total int, file, relative string) {
	e.emit(fileStartedEvent{e.head("file_started"), index, total, file, relative})
}

type fileProgressEvent struct {
	header
	Index    int     `json:"index"`
	File     string  `json:"file"`
	Progress float64 `json:"progress"`
	RTFx     float64 `json:"rtfx"`
}

func (e *Emitter) FileProgress(index int, file string, progress, rtfx float64) {
	e.emit(fileProgressEvent{e.head("file_progress"), index, file, progress, rtfx})
}

type fileRetryEvent struct {
	header
	Index       int    `json:"index"`
	File        string `json:"file"`
	Reason      string `json:"reason"`
	Device      string `json:"device"`
	ComputeType string `json:"compute_type"`
}

func (e *Emitter) FileRetry(index int, file, reason, device, computeType string) {
	e.emit(fileRetryEvent{e.head("file_retry"), index, file, reason, device, computeType})
}

type fileDoneEvent struct {
	header
	Index             int         `json:"index"`
	File              string      `json:"file"`
	DurationSeconds   float64     `json:"duration_seconds"`
	ProcessingSeconds float64     `json:"processing_seconds"`
	RTFx              float64     `json:"rtfx"`
	Confidence        float64     `json:"confidence"`
	Output            OutputPaths `json:"output"`
}

func (e *Emitter) FileDone(index int, file string, durationSeconds, processingSeconds, rtfx, confidence float64, output OutputPaths) {
	e.emit(fileDoneEvent{e.head("file_done"), index, file, durationSeconds, processingSeconds, rtfx, confidence, output})
}

type fileFailedEvent struct {
	header
	Index    int    `json:"index"`
	File     string `json:"file"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}

func (e *Emitter) FileFailed(index int, file, errorMessage string, attempts int) {
	e.emit(fileFailedEvent{e.head("file_failed"), index, file, errorMessage, attempts})
}

type fileSkippedEvent struct {
	header
	Index  int    `json:"index"`
	File   string `json:"file"`
	Reason string `json:"reason"`
}

func (e *Emitter) FileSkipped(index int, file, reason string) {
	e.emit(fileSkippedEvent{e.head("file_skipped"), index, file, reason})
}

type summaryEvent struct {
	header
	Total           int             `json:"total"`
	Processed       int             `json:"processed"`
	Skipped         int             `json:"skipped"`
	Failed          int             `json:"failed"`
	DurationSeconds float64         `json:"duration_seconds"`
	Failures        []FailureRecord `json:"failures"`
}

// Summary is emitted exactly once, after the last file.
func (e *Emitter) Summary(total, processed, skipped, failed int, durationSeconds float64, failures []FailureRecord) {
	if failures == nil {
		failures = []FailureRecord{}
	}
	e.emit(summaryEvent{e.head("summary"), total, processed, skipped, failed, durationSeconds, failures})
}

type fatalErrorEvent struct {
	header
	Error string `json:"error"`
}

// FatalError reports a batch-level failure (initial model load).
func (e *Emitter) FatalError(errorMessage string) {
	e.emit(fatalErrorEvent{e.head("fatal_error"), errorMessage})
}
