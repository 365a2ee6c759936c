package worker

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"time"

	"github.com/whisper-batch/worker/internal/whisper"
)

// elapsedFloor prevents division by zero when the first segment arrives
// before any measurable wall clock has passed.
const elapsedFloor = 1e-6

// minSilenceMs is the fixed voice-activity gap passed to the model. A policy
// knob, not user-configurable.
const minSilenceMs = 500

// transcribeOnce drives one model invocation for one file: it consumes the
// segment stream exactly once, emits progress as segments arrive, and returns
// the assembled result with total audio duration and confidence.
func (w *Worker) transcribeOnce(ctx context.Context, model whisper.Model, sourcePath string, index int, startedAt time.Time) (*whisper.Result, float64, float64, error) {
	stream, info, err := model.Transcribe(ctx, sourcePath, whisper.Options{
		WordTimestamps: true,
		VADFilter:      true,
		MinSilenceMs:   minSilenceMs,
	})
	if err != nil {
		return nil, 0, 0, err
	}

	infoDuration := math.Max(0, info.Duration)

	segments := []whisper.Segment{}
	maxEnd := 0.0
	for {
		segment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, 0, err
		}

		segment = sanitizeSegment(segment)
		segments = append(segments, segment)
		if segment.End > maxEnd {
			maxEnd = segment.End
		}

		if infoDuration > 0 {
			elapsed := math.Max(time.Since(startedAt).Seconds(), elapsedFloor)
			progress := math.Min(100, segment.End/infoDuration*100)
			w.emitter.FileProgress(index, sourcePath, progress, segment.End/elapsed)
		}
	}

	result := buildResult(segments, info)
	// Guards against a provider that omits aggregate duration.
	durationSeconds := math.Max(infoDuration, maxEnd)
	return result, durationSeconds, confidenceFromSegments(segments), nil
}

func sanitizeSegment(segment whisper.Segment) whisper.Segment {
	segment.Start = math.Max(0, segment.Start)
	segment.End = math.Max(0, segment.End)

	for i, word := range segment.Words {
		segment.Words[i].Start = math.Max(0, word.Start)
		segment.Words[i].End = math.Max(0, word.End)
		if word.Probability != nil {
			clamped := clamp01(*word.Probability)
			segment.Words[i].Probability = &clamped
		}
	}
	return segment
}

func buildResult(segments []whisper.Segment, info whisper.Info) *whisper.Result {
	var parts []string
	for _, segment := range segments {
		if trimmed := strings.TrimSpace(segment.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	return &whisper.Result{
		Text:                strings.Join(parts, " "),
		Segments:            segments,
		Language:            info.Language,
		LanguageProbability: clamp01(info.LanguageProbability),
		Duration:            math.Max(0, info.Duration),
		DurationAfterVAD:    math.Max(0, info.DurationAfterVAD),
	}
}

// confidenceFromSegments derives a [0, 1] confidence score: mean segment
// avg_logprob converted to a probability when present, mean word probability
// as the fallback signal, 0 when neither exists.
func confidenceFromSegments(segments []whisper.Segment) float64 {
	var logprobSum float64
	var logprobCount int
	for _, segment := range segments {
		if segment.AvgLogprob != nil {
			logprobSum += *segment.AvgLogprob
			logprobCount++
		}
	}
	if logprobCount > 0 {
		return clamp01(math.Exp(logprobSum / float64(logprobCount)))
	}

	var probabilitySum float64
	var probabilityCount int
	for _, segment := range segments {
		for _, word := range segment.Words {
			if word.Probability != nil {
				probabilitySum += *word.Probability
				probabilityCount++
			}
		}
	}
	if probabilityCount > 0 {
		return clamp01(probabilitySum / float64(probabilityCount))
	}

	return 0
}

func clamp01(value float64) float64 {
	return math.Max(0, math.Min(1, value))
}
