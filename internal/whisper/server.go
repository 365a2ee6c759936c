package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/whisper-batch/worker/internal/gpu"
)

// ServerProvider talks to a faster-whisper sidecar server over HTTP. The
// server shares the worker's filesystem view only through uploads, so audio
// is sent as multipart form data.
type ServerProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewServerProvider creates a provider for the given server base URL.
func NewServerProvider(baseURL string) *ServerProvider {
	return &ServerProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // transcription can be very long
		},
	}
}

func (p *ServerProvider) Name() string {
	return "server"
}

// Load asks the server to bind the model to the requested configuration.
// A non-200 response body is surfaced verbatim so OOM text stays visible.
func (p *ServerProvider) Load(ctx context.Context, model string, device gpu.Device, computeType gpu.ComputeType) (Model, error) {
	payload, err := json.Marshal(map[string]string{
		"model":        model,
		"device":       string(device),
		"compute_type": string(computeType),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal load request: %w", err)
	}

	url := p.baseURL + "/load"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[whisper] loading model %s (%s/%s) via %s", model, device, computeType, url)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper server request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read load response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper server load failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &serverModel{provider: p}, nil
}

type serverModel struct {
	provider *ServerProvider
}

// verboseResponse is the verbose_json body faster-whisper servers return.
type verboseResponse struct {
	Language            string    `json:"language"`
	LanguageProbability float64   `json:"language_probability"`
	Duration            float64   `json:"duration"`
	DurationAfterVAD    float64   `json:"duration_after_vad"`
	Segments            []Segment `json:"segments"`
}

func (m *serverModel) Transcribe(ctx context.Context, path string, opts Options) (SegmentStream, Info, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	audioFile, err := os.Open(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("open audio: %w", err)
	}
	defer audioFile.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, Info{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audioFile); err != nil {
		return nil, Info{}, fmt.Errorf("copy audio data: %w", err)
	}

	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("word_timestamps", strconv.FormatBool(opts.WordTimestamps))
	writer.WriteField("vad_filter", strconv.FormatBool(opts.VADFilter))
	if opts.MinSilenceMs > 0 {
		writer.WriteField("min_silence_duration_ms", strconv.Itoa(opts.MinSilenceMs))
	}
	if opts.Language != "" && opts.Language != "auto" {
		writer.WriteField("language", opts.Language)
	}

	writer.Close()

	url := m.provider.baseURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, Info{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("[whisper] sending request to %s (audio: %s)", url, path)

	resp, err := m.provider.httpClient.Do(req)
	if err != nil {
		return nil, Info{}, fmt.Errorf("whisper server request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Info{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, Info{}, fmt.Errorf("whisper server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed verboseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Info{}, fmt.Errorf("decode verbose_json response: %w", err)
	}

	info := Info{
		Language:            parsed.Language,
		LanguageProbability: parsed.LanguageProbability,
		Duration:            parsed.Duration,
		DurationAfterVAD:    parsed.DurationAfterVAD,
	}
	return NewSliceStream(parsed.Segments), info, nil
}

// Close is a no-op: the remote model is owned by the server and replaced by
// the next Load call.
func (m *serverModel) Close() error {
	return nil
}
