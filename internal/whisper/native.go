package whisper

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/whisper-batch/worker/internal/gpu"
)

// NativeProvider runs whisper.cpp in-process through its Go bindings. The
// bindings fix device and precision at build time, so the requested pair is
// recorded for event identity but not enforced here.
type NativeProvider struct {
	modelDir string
}

// NewNativeProvider creates a provider resolving ggml models under modelDir.
func NewNativeProvider(modelDir string) *NativeProvider {
	return &NativeProvider{modelDir: modelDir}
}

func (p *NativeProvider) Name() string {
	return "native"
}

// Load resolves and loads the ggml model file for the given model name.
func (p *NativeProvider) Load(ctx context.Context, model string, device gpu.Device, computeType gpu.ComputeType) (Model, error) {
	modelPath := filepath.Join(p.modelDir, fmt.Sprintf("ggml-%s.bin", model))
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", modelPath, err)
	}

	log.Printf("[whisper] loading ggml model %s (%s/%s)", modelPath, device, computeType)

	loaded, err := whispercpp.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load ggml model: %w", err)
	}

	return &nativeModel{model: loaded}, nil
}

type nativeModel struct {
	model whispercpp.Model
}

func (m *nativeModel) Transcribe(ctx context.Context, path string, opts Options) (SegmentStream, Info, error) {
	// whisper.cpp wants 16kHz mono float32; go through ffmpeg first.
	wavPath, err := extractAudio(ctx, path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("extract audio: %w", err)
	}
	defer os.Remove(wavPath)

	samples, err := decodeWAVSamples(wavPath)
	if err != nil {
		return nil, Info{}, err
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return nil, Info{}, fmt.Errorf("create whisper context: %w", err)
	}

	wctx.SetTranslate(false)
	if opts.WordTimestamps {
		wctx.SetTokenTimestamps(true)
	}
	language := opts.Language
	if language == "" {
		language = "auto"
	}
	if err := wctx.SetLanguage(language); err != nil {
		return nil, Info{}, fmt.Errorf("set language %q: %w", language, err)
	}

	// VAD filtering is not available through the bindings; opts.VADFilter and
	// opts.MinSilenceMs only apply to the server engine.
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, Info{}, fmt.Errorf("process audio: %w", err)
	}

	info := Info{
		Language: wctx.Language(),
		Duration: float64(len(samples)) / 16000.0,
	}
	return &nativeStream{ctx: wctx, withWords: opts.WordTimestamps}, info, nil
}

func (m *nativeModel) Close() error {
	return m.model.Close()
}

// nativeStream yields decoded segments one at a time via NextSegment.
type nativeStream struct {
	ctx       whispercpp.Context
	withWords bool
}

func (s *nativeStream) Next() (Segment, error) {
	native, err := s.ctx.NextSegment()
	if err != nil {
		// The bindings signal end of segments with io.EOF.
		return Segment{}, io.EOF
	}

	id := native.Num
	segment := Segment{
		ID:    &id,
		Start: native.Start.Seconds(),
		End:   native.End.Seconds(),
		Text:  native.Text,
	}

	if s.withWords {
		for _, token := range native.Tokens {
			text := strings.TrimSpace(token.Text)
			if text == "" || strings.HasPrefix(text, "[_") {
				continue
			}
			probability := float64(token.P)
			segment.Words = append(segment.Words, Word{
				Word:        token.Text,
				Probability: &probability,
			})
		}
	}

	return segment, nil
}
