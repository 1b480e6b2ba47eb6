// Package vad implements the streaming voice-activity-detection state
// machine: the byte buffer to fixed-size frame slicer, the hysteresis-
// threshold speech detector with pre/post padding and redemption timing,
// and the chunk-emission scheduler that partitions long utterances into
// in-flight slices while guaranteeing a faithful final segment.
//
// The package never touches audio I/O, resampling, or model loading
// directly; it consumes an adapter.Adapter (package
// github.com/vadstream/vadstream/pkg/vad/adapter) as its only inference
// boundary, which is what makes the state machine itself deterministic
// and testable with mock probabilities.
package vad

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/vadstream/vadstream/pkg/vad/adapter"
)

// Engine is a single streaming VAD instance. It assumes serialized frame
// input: callers must await each PushBytes before issuing the next one
// against the same Engine. Two Engines may run concurrently on
// independent goroutines without interference.
type Engine struct {
	cfg Config
	adp adapter.Adapter

	slicer *slicer

	speaking             bool
	redemptionCounter    int
	speechPositiveFrames int
	realStartFired       bool
	speechStartIndex     int
	sentRedemptionFrames int
	currentSample        int64
	totalFramesProcessed uint64

	preSpeech   frameRing
	accumulator [][]float32

	utteranceID uuid.UUID
	released    bool
}

// New resolves cfg.ModelSource to ONNX bytes (via package modelsource),
// constructs the matching adapter.Adapter, and returns a ready Engine.
// Construction-time failures (bad config, model fetch/load failure) are
// returned here; no Engine is returned on error.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	modelBytes, err := cfg.ModelSource.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("vad: resolve model source: %w", err)
	}

	adp, err := adapter.New(cfg.Model, modelBytes, cfg.FrameSamples, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("vad: construct adapter: %w", err)
	}

	return NewWithAdapter(cfg, adp)
}

// NewWithAdapter builds an Engine around an already-constructed adapter,
// bypassing model resolution entirely. This is the seam the detector's
// tests use to run the state machine against adapter.NewMock, and the
// seam a caller uses when it wants to manage the adapter's lifecycle
// independently, for example sharing one set of read-only model weights
// across several engines.
func NewWithAdapter(cfg Config, adp adapter.Adapter) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if adp == nil {
		return nil, fmt.Errorf("vad: adapter must not be nil")
	}

	return &Engine{
		cfg:       cfg,
		adp:       adp,
		slicer:    newSlicer(cfg.FrameSamples),
		preSpeech: newFrameRing(cfg.PreSpeechPadFrames),
	}, nil
}

// Config returns the Engine's resolved configuration (defaults applied).
func (e *Engine) Config() Config { return e.cfg }

// PushBytes feeds raw little-endian PCM16 bytes into the slicer and
// drains every full frame through the detector, returning every event
// generated by this call in generation order. Bytes short of a full
// frame remain queued for the next call.
func (e *Engine) PushBytes(data []byte) ([]Event, error) {
	if e.released {
		return nil, fmt.Errorf("vad: engine has been released")
	}

	e.slicer.push(data)

	var events []Event
	for {
		frame, ok := e.slicer.next()
		if !ok {
			break
		}
		events = append(events, e.processFrame(frame)...)
	}
	return events, nil
}

// ProcessFrame runs one frame directly through the detector, bypassing
// the slicer. A frame of the wrong width is a programming error: it is
// logged and dropped, leaving all state untouched.
func (e *Engine) ProcessFrame(frame []float32) []Event {
	if len(frame) != e.cfg.FrameSamples {
		log.Printf("vad: dropping frame of wrong size: got %d, want %d", len(frame), e.cfg.FrameSamples)
		return nil
	}
	return e.processFrame(frame)
}

// processFrame runs inference on frame, emits frameProcessed, and then
// dispatches to the positive/negative/intermediate branch based on
// where the returned probability falls relative to the configured
// thresholds.
func (e *Engine) processFrame(frame []float32) []Event {
	e.totalFramesProcessed++
	t := float64(e.currentSample) / float64(e.cfg.SampleRate)

	p, err := e.adp.Process(frame)
	e.currentSample += int64(len(frame))
	if err != nil {
		return []Event{{Type: EventError, T: t, UtteranceID: e.utteranceID, Message: err.Error()}}
	}

	notP := 1 - p
	events := []Event{{
		Type:        EventFrameProcessed,
		T:           t,
		UtteranceID: e.utteranceID,
		IsSpeech:    p,
		NotSpeech:   notP,
		Frame:       cloneFrame(frame),
	}}

	switch {
	case p >= e.cfg.PositiveSpeechThreshold:
		events = append(events, e.onPositive(frame, t)...)
	case p < e.cfg.NegativeSpeechThreshold:
		events = append(events, e.onNegative(frame, t)...)
	default:
		events = append(events, e.onIntermediate(frame, t)...)
	}
	return events
}

func (e *Engine) onPositive(frame []float32, t float64) []Event {
	var events []Event

	if !e.speaking {
		e.speaking = true
		e.speechStartIndex = 0
		e.realStartFired = false
		e.utteranceID = uuid.New()
		events = append(events, Event{Type: EventStart, T: t, UtteranceID: e.utteranceID})

		pre := e.preSpeech.drain()
		e.accumulator = append(e.accumulator, pre...)
	}

	e.redemptionCounter = 0
	e.sentRedemptionFrames = 0

	e.accumulator = append(e.accumulator, cloneFrame(frame))
	e.speechPositiveFrames++

	if !e.realStartFired && e.speechPositiveFrames == e.cfg.MinSpeechFrames {
		e.realStartFired = true
		events = append(events, Event{Type: EventRealStart, T: t, UtteranceID: e.utteranceID})
	}

	events = append(events, e.maybeEmitChunk(t)...)
	return events
}

func (e *Engine) onNegative(frame []float32, t float64) []Event {
	if !e.speaking {
		e.preSpeech.push(frame)
		return nil
	}

	e.accumulator = append(e.accumulator, cloneFrame(frame))
	e.redemptionCounter++

	if e.redemptionCounter >= e.cfg.RedemptionFrames {
		return e.endOfSpeech(t)
	}
	return nil
}

func (e *Engine) onIntermediate(frame []float32, t float64) []Event {
	if !e.speaking {
		e.preSpeech.push(frame)
		return nil
	}

	e.accumulator = append(e.accumulator, cloneFrame(frame))
	// sentRedemptionFrames is deliberately left untouched here: it keeps
	// a stale snapshot across a long intermediate stretch, which the
	// final-chunk math in endOfSpeech then uses as-is.
	e.redemptionCounter = 0

	return e.maybeEmitChunk(t)
}

// maybeEmitChunk emits an in-flight chunk at the tail of every
// positive/intermediate frame while speaking, once enough unsent frames
// have accumulated and redemption hasn't run past the end-speech pad.
func (e *Engine) maybeEmitChunk(t float64) []Event {
	n := e.cfg.NumFramesToEmit
	if n <= 0 {
		return nil
	}
	if len(e.accumulator)-e.speechStartIndex < n {
		return nil
	}
	if e.redemptionCounter > e.cfg.EndSpeechPadFrames {
		return nil
	}

	slice := e.accumulator[e.speechStartIndex : e.speechStartIndex+n]
	audio := framesToPCM(slice)
	e.speechStartIndex += n
	e.sentRedemptionFrames = e.redemptionCounter

	return []Event{{Type: EventChunk, T: t, UtteranceID: e.utteranceID, Audio: audio, IsFinal: false}}
}

// endOfSpeech runs the end-of-speech sequence once redemptionCounter has
// reached RedemptionFrames while speaking: it validates the utterance,
// emits end or misfire, optionally emits a final chunk, and resets
// utterance-scoped state.
func (e *Engine) endOfSpeech(t float64) []Event {
	e.speaking = false
	e.redemptionCounter = 0

	var events []Event

	if e.speechPositiveFrames < e.cfg.MinSpeechFrames {
		events = append(events, Event{Type: EventMisfire, T: t, UtteranceID: e.utteranceID})
		e.finishUtterance()
		return events
	}

	framesToRemove := e.cfg.RedemptionFrames - e.cfg.EndSpeechPadFrames
	segment := sliceOrPad(e.accumulator, 0, framesToRemove, e.cfg.FrameSamples)
	events = append(events, Event{Type: EventEnd, T: t, UtteranceID: e.utteranceID, Audio: framesToPCM(segment)})

	if e.cfg.NumFramesToEmit > 0 {
		var endFramesToRemove int
		if e.sentRedemptionFrames == 0 {
			endFramesToRemove = e.cfg.RedemptionFrames - e.cfg.EndSpeechPadFrames
		} else {
			endFramesToRemove = e.sentRedemptionFrames - e.cfg.EndSpeechPadFrames
		}

		if e.speechStartIndex < len(e.accumulator) || endFramesToRemove < 0 {
			final := sliceOrPad(e.accumulator, e.speechStartIndex, endFramesToRemove, e.cfg.FrameSamples)
			if len(final) > 0 {
				events = append(events, Event{Type: EventChunk, T: t, UtteranceID: e.utteranceID, Audio: framesToPCM(final), IsFinal: true})
			}
		}
	}

	e.finishUtterance()
	return events
}

// finishUtterance resets the per-utterance counters and, when the
// end-speech pad is shorter than the redemption window, carries the
// trailing redemption frames of the old accumulator into the pre-speech
// ring so the next utterance still has that context.
func (e *Engine) finishUtterance() {
	if e.cfg.EndSpeechPadFrames < e.cfg.RedemptionFrames {
		n := e.cfg.RedemptionFrames - e.cfg.EndSpeechPadFrames
		for _, f := range lastN(e.accumulator, n) {
			e.preSpeech.push(f)
		}
	}
	e.accumulator = e.accumulator[:0]

	e.speechPositiveFrames = 0
	e.speechStartIndex = 0
	e.sentRedemptionFrames = 0
	e.realStartFired = false
}

// ForceEndSpeech closes the current utterance on demand: while speaking
// and validated (speechPositiveFrames >= MinSpeechFrames), it emits a
// single end event carrying the entire speech accumulator and resets
// state exactly as the misfire/end cleanup path does. It is a no-op
// otherwise, and it deliberately does not flush a final chunk even when
// chunking is enabled; the speechStartIndex partition is discarded, not
// drained.
func (e *Engine) ForceEndSpeech() []Event {
	if !e.speaking || e.speechPositiveFrames < e.cfg.MinSpeechFrames {
		return nil
	}

	t := float64(e.currentSample) / float64(e.cfg.SampleRate)
	ev := Event{Type: EventEnd, T: t, UtteranceID: e.utteranceID, Audio: framesToPCM(e.accumulator)}

	e.speaking = false
	e.redemptionCounter = 0
	e.finishUtterance()

	return []Event{ev}
}

// Reset clears all buffers, zeroes all counters, and resets the
// adapter's recurrent neural state. The adapter and its model session
// are kept alive.
func (e *Engine) Reset() error {
	e.adp.ResetState()

	e.speaking = false
	e.redemptionCounter = 0
	e.speechPositiveFrames = 0
	e.realStartFired = false
	e.speechStartIndex = 0
	e.sentRedemptionFrames = 0
	e.currentSample = 0
	e.totalFramesProcessed = 0
	e.utteranceID = uuid.UUID{}

	e.preSpeech = newFrameRing(e.cfg.PreSpeechPadFrames)
	e.accumulator = nil
	e.slicer.reset()

	return nil
}

// Release drops the adapter's model session. The Engine must not be
// used after Release returns.
func (e *Engine) Release() error {
	if e.released {
		return nil
	}
	e.released = true
	return e.adp.Release()
}

// Close satisfies io.Closer as an alias for Release.
func (e *Engine) Close() error { return e.Release() }

// TotalFramesProcessed returns the monotonic per-instance frame counter.
func (e *Engine) TotalFramesProcessed() uint64 { return e.totalFramesProcessed }

// sliceOrPad takes frames[start:], trims framesToRemove from its tail
// when non-negative, or appends -framesToRemove zero-filled silence
// frames when negative. It backs both the validated-segment and
// final-chunk boundary math in endOfSpeech.
func sliceOrPad(frames [][]float32, start, framesToRemove, frameWidth int) [][]float32 {
	if start > len(frames) {
		start = len(frames)
	}
	sub := frames[start:]

	if framesToRemove >= 0 {
		end := len(sub) - framesToRemove
		if end < 0 {
			end = 0
		}
		return sub[:end]
	}

	pad := make([][]float32, -framesToRemove)
	for i := range pad {
		pad[i] = make([]float32, frameWidth)
	}
	out := make([][]float32, 0, len(sub)+len(pad))
	out = append(out, sub...)
	out = append(out, pad...)
	return out
}

// lastN returns the last n frames of frames, or all of them if fewer
// than n are available.
func lastN(frames [][]float32, n int) [][]float32 {
	if n <= 0 {
		return nil
	}
	if n >= len(frames) {
		return frames
	}
	return frames[len(frames)-n:]
}
