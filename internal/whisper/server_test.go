package whisper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/whisper-batch/worker/internal/gpu"
)

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(path, []byte("fake audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServerProviderLoad(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewServerProvider(server.URL)
	model, err := provider.Load(context.Background(), "small", gpu.DeviceCUDA, gpu.ComputeFloat16)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer model.Close()

	if gotPath != "/load" {
		t.Fatalf("path = %q, want /load", gotPath)
	}
	for _, want := range []string{`"model":"small"`, `"device":"cuda"`, `"compute_type":"float16"`} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("load body %q missing %q", gotBody, want)
		}
	}
}

func TestServerProviderLoadFailureSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CUDA driver missing", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewServerProvider(server.URL).Load(context.Background(), "small", gpu.DeviceCUDA, gpu.ComputeFloat16)
	if err == nil {
		t.Fatal("Load succeeded, want error")
	}
	if !strings.Contains(err.Error(), "CUDA driver missing") {
		t.Fatalf("error %q does not carry the server body", err)
	}
}

func TestServerModelTranscribe(t *testing.T) {
	const verbose = `{
		"language": "en",
		"language_probability": 0.97,
		"duration": 12.5,
		"duration_after_vad": 11.0,
		"segments": [
			{"id": 0, "start": 0.0, "end": 4.2, "text": " hello", "avg_logprob": -0.25, "no_speech_prob": 0.01,
			 "words": [{"word": "hello", "start": 0.1, "end": 0.7, "probability": 0.98}]},
			{"id": 1, "start": 4.2, "end": 9.9, "text": " world", "avg_logprob": -0.31, "no_speech_prob": 0.02}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/load" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("word_timestamps"); got != "true" {
			t.Errorf("word_timestamps = %q", got)
		}
		if got := r.FormValue("min_silence_duration_ms"); got != "500" {
			t.Errorf("min_silence_duration_ms = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, verbose)
	}))
	defer server.Close()

	provider := NewServerProvider(server.URL)
	model, err := provider.Load(context.Background(), "small", gpu.DeviceCPU, gpu.ComputeInt8)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	stream, info, err := model.Transcribe(context.Background(), writeTempAudio(t), Options{
		WordTimestamps: true,
		VADFilter:      true,
		MinSilenceMs:   500,
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if info.Language != "en" || info.Duration != 12.5 || info.DurationAfterVAD != 11.0 {
		t.Fatalf("info = %+v", info)
	}

	var segments []Segment
	for {
		segment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		segments = append(segments, segment)
	}

	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	if segments[0].Text != " hello" || segments[0].AvgLogprob == nil || *segments[0].AvgLogprob != -0.25 {
		t.Fatalf("segment[0] = %+v", segments[0])
	}
	if len(segments[0].Words) != 1 || segments[0].Words[0].Probability == nil {
		t.Fatalf("segment[0] words = %+v", segments[0].Words)
	}

	// Stream is finite: after EOF it stays exhausted.
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after EOF = %v, want io.EOF", err)
	}
}

func TestServerModelTranscribeErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/load" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "CUDA failed: out of memory", http.StatusInternalServerError)
	}))
	defer server.Close()

	model, err := NewServerProvider(server.URL).Load(context.Background(), "small", gpu.DeviceCUDA, gpu.ComputeFloat16)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, _, err = model.Transcribe(context.Background(), writeTempAudio(t), Options{})
	if err == nil {
		t.Fatal("Transcribe succeeded, want error")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "out of memory") {
		t.Fatalf("error %q does not carry the OOM text", err)
	}
}
