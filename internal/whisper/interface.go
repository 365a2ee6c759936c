package whisper

import (
	"context"
	"io"

	"github.com/whisper-batch/worker/internal/gpu"
)

// Provider constructs transcription models bound to a runtime configuration.
// Loading is expensive and fallible; a loaded Model belongs to exactly one
// (device, compute type) pair.
type Provider interface {
	// Name returns the engine name
	Name() string
	// Load acquires a model. Any underlying failure (missing dependency,
	// unsupported configuration, out of memory during load) is returned as-is
	// for the caller to wrap.
	Load(ctx context.Context, model string, device gpu.Device, computeType gpu.ComputeType) (Model, error)
}

// Model is a loaded model able to transcribe audio files.
type Model interface {
	// Transcribe starts one inference over the file at path and returns the
	// segment stream plus aggregate info detected up front.
	Transcribe(ctx context.Context, path string, opts Options) (SegmentStream, Info, error)
	// Close releases underlying resources.
	Close() error
}

// SegmentStream yields segments in order as the model produces them. The
// stream is finite and non-restartable: Next returns io.EOF after the last
// segment, and a retried file needs a fresh Transcribe call.
type SegmentStream interface {
	Next() (Segment, error)
}

// Options configures one transcription call.
type Options struct {
	Language       string
	WordTimestamps bool
	VADFilter      bool
	MinSilenceMs   int
}

// Word is one word-level timing record inside a segment.
type Word struct {
	Word        string   `json:"word,omitempty"`
	Start       float64  `json:"start,omitempty"`
	End         float64  `json:"end,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
}

// Segment is one timed unit of transcribed text.
type Segment struct {
	ID           *int     `json:"id,omitempty"`
	Start        float64  `json:"start"`
	End          float64  `json:"end"`
	Text         string   `json:"text"`
	AvgLogprob   *float64 `json:"avg_logprob,omitempty"`
	NoSpeechProb float64  `json:"no_speech_prob,omitempty"`
	Words        []Word   `json:"words,omitempty"`
}

// Info is the aggregate metadata a model reports for one file.
type Info struct {
	Language            string  `json:"language,omitempty"`
	LanguageProbability float64 `json:"language_probability,omitempty"`
	Duration            float64 `json:"duration,omitempty"`
	DurationAfterVAD    float64 `json:"duration_after_vad,omitempty"`
}

// Result is the assembled transcription for one file, in output order.
type Result struct {
	Text                string    `json:"text"`
	Segments            []Segment `json:"segments"`
	Language            string    `json:"language,omitempty"`
	LanguageProbability float64   `json:"language_probability,omitempty"`
	Duration            float64   `json:"duration,omitempty"`
	DurationAfterVAD    float64   `json:"duration_after_vad,omitempty"`
}

type sliceStream struct {
	segments []Segment
	pos      int
}

// NewSliceStream returns a stream over already-materialized segments.
func NewSliceStream(segments []Segment) SegmentStream {
	return &sliceStream{segments: segments}
}

func (s *sliceStream) Next() (Segment, error) {
	if s.pos >= len(s.segments) {
		return Segment{}, io.EOF
	}
	segment := s.segments[s.pos]
	s.pos++
	return segment, nil
}
