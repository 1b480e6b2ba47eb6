package vad

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadstream/vadstream/pkg/vad/adapter"
)

// v5TestConfig returns the v5-default configuration used by every
// scenario below: F=512, sampleRate=16000, positive=0.5, negative=0.35,
// redemption=24, preSpeechPad=3, minSpeech=9, endSpeechPad=3.
func v5TestConfig() Config {
	return Config{Model: ModelV5}.withDefaults()
}

// silentFrame is a 512-sample, all-zero frame; its content is irrelevant
// since newEngineWithProbs drives probabilities from a scripted sequence
// rather than from the samples themselves.
func silentFrame(n int) []byte {
	return make([]byte, n*2)
}

func newEngineWithProbs(t *testing.T, cfg Config, probs []float32) (*Engine, *adapter.Mock) {
	t.Helper()
	mock := adapter.NewMock(probs...)
	e, err := NewWithAdapter(cfg, mock)
	require.NoError(t, err)
	return e, mock
}

func feedFrames(t *testing.T, e *Engine, n, frameSamples int) []Event {
	t.Helper()
	var all []Event
	for i := 0; i < n; i++ {
		evs, err := e.PushBytes(silentFrame(frameSamples))
		require.NoError(t, err)
		all = append(all, evs...)
	}
	return all
}

func countType(events []Event, t EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func firstOfType(events []Event, t EventType) (Event, bool) {
	for _, e := range events {
		if e.Type == t {
			return e, true
		}
	}
	return Event{}, false
}

// Scenario 1: silence only.
func TestEngineSilenceOnly(t *testing.T) {
	cfg := v5TestConfig()
	probs := make([]float32, 20)
	e, _ := newEngineWithProbs(t, cfg, probs)

	events := feedFrames(t, e, 20, cfg.FrameSamples)

	assert.Equal(t, 20, countType(events, EventFrameProcessed))
	assert.Equal(t, 0, countType(events, EventStart))
	assert.Equal(t, 0, countType(events, EventRealStart))
	assert.Equal(t, 0, countType(events, EventChunk))
	assert.Equal(t, 0, countType(events, EventEnd))
	assert.Equal(t, 0, countType(events, EventMisfire))
	assert.Equal(t, 3, e.preSpeech.len()) // min(20, preSpeechPadFrames=3)
}

// Scenario 2: a clean, validated utterance.
func TestEngineCleanUtterance(t *testing.T) {
	cfg := v5TestConfig()
	var probs []float32
	for i := 0; i < 3; i++ {
		probs = append(probs, 0.1)
	}
	for i := 0; i < 12; i++ {
		probs = append(probs, 0.9)
	}
	for i := 0; i < 24; i++ {
		probs = append(probs, 0.1)
	}
	e, _ := newEngineWithProbs(t, cfg, probs)

	events := feedFrames(t, e, len(probs), cfg.FrameSamples)

	start, ok := firstOfType(events, EventStart)
	require.True(t, ok)
	assert.InDelta(t, 3*float64(cfg.FrameSamples)/float64(cfg.SampleRate), start.T, 1e-9)

	realStart, ok := firstOfType(events, EventRealStart)
	require.True(t, ok)
	assert.InDelta(t, 11*float64(cfg.FrameSamples)/float64(cfg.SampleRate), realStart.T, 1e-9)

	end, ok := firstOfType(events, EventEnd)
	require.True(t, ok)
	assert.Equal(t, 0, countType(events, EventMisfire))
	// 3 pre-pad + 12 positive + endSpeechPadFrames(3) kept redemption.
	assert.Equal(t, (3+12+3)*cfg.FrameSamples, len(end.Audio))
}

// Scenario 3: misfire (too few positive frames to validate).
func TestEngineMisfire(t *testing.T) {
	cfg := v5TestConfig()
	var probs []float32
	for i := 0; i < 5; i++ {
		probs = append(probs, 0.9)
	}
	for i := 0; i < 24; i++ {
		probs = append(probs, 0.0)
	}
	e, _ := newEngineWithProbs(t, cfg, probs)

	events := feedFrames(t, e, len(probs), cfg.FrameSamples)

	assert.Equal(t, 1, countType(events, EventStart))
	assert.Equal(t, 0, countType(events, EventRealStart))
	assert.Equal(t, 1, countType(events, EventMisfire))
	assert.Equal(t, 0, countType(events, EventEnd))
	assert.Equal(t, 0, countType(events, EventChunk))
}

// Scenario 4: an intermediate-probability stretch holds speech open
// without ending the utterance or disturbing sentRedemptionFrames.
func TestEngineIntermediateHoldsSpeech(t *testing.T) {
	cfg := v5TestConfig()
	var probs []float32
	for i := 0; i < 9; i++ {
		probs = append(probs, 0.9)
	}
	for i := 0; i < 100; i++ {
		probs = append(probs, 0.4) // negative=0.35, positive=0.5: intermediate band
	}
	for i := 0; i < 24; i++ {
		probs = append(probs, 0.0)
	}
	e, _ := newEngineWithProbs(t, cfg, probs)

	events := feedFrames(t, e, len(probs), cfg.FrameSamples)

	assert.Equal(t, 1, countType(events, EventStart))
	assert.Equal(t, 1, countType(events, EventRealStart))
	assert.Equal(t, 1, countType(events, EventEnd))
	assert.Equal(t, 0, countType(events, EventMisfire))

	end, _ := firstOfType(events, EventEnd)
	// 9 positive + 100 intermediate + endSpeechPadFrames(3) kept redemption.
	assert.Equal(t, (9+100+3)*cfg.FrameSamples, len(end.Audio))
}

// Scenario 5: a long chunked utterance emits in-flight chunks plus a
// final remainder chunk whose contents plus the in-flight chunks exactly
// cover the validated segment.
func TestEngineChunkedLongUtterance(t *testing.T) {
	cfg := v5TestConfig()
	cfg.NumFramesToEmit = 30

	var probs []float32
	for i := 0; i < 120; i++ {
		probs = append(probs, 0.9)
	}
	for i := 0; i < 24; i++ {
		probs = append(probs, 0.0)
	}
	e, _ := newEngineWithProbs(t, cfg, probs)

	events := feedFrames(t, e, len(probs), cfg.FrameSamples)

	require.Equal(t, 1, countType(events, EventRealStart))

	var inFlight []Event
	var final *Event
	for i := range events {
		if events[i].Type == EventChunk {
			if events[i].IsFinal {
				final = &events[i]
			} else {
				inFlight = append(inFlight, events[i])
			}
		}
	}
	assert.Len(t, inFlight, 4)

	end, ok := firstOfType(events, EventEnd)
	require.True(t, ok)

	totalFrames := 0
	for _, c := range inFlight {
		totalFrames += len(c.Audio) / cfg.FrameSamples
	}
	if final != nil {
		totalFrames += len(final.Audio) / cfg.FrameSamples
	}
	assert.Equal(t, len(end.Audio)/cfg.FrameSamples, totalFrames)
}

// Scenario 6: forceEndSpeech flushes the whole accumulator (pre-pad
// included) as a single end event and resets state; it never emits a
// misfire or a final chunk.
func TestEngineForceEndSpeech(t *testing.T) {
	cfg := v5TestConfig()
	cfg.NumFramesToEmit = 10 // chunking enabled, but must not affect ForceEndSpeech

	var probs []float32
	for i := 0; i < 3; i++ {
		probs = append(probs, 0.1) // fills the pre-speech ring to capacity
	}
	for i := 0; i < 15; i++ {
		probs = append(probs, 0.9)
	}
	e, _ := newEngineWithProbs(t, cfg, probs)

	feedFrames(t, e, len(probs), cfg.FrameSamples)

	events := e.ForceEndSpeech()

	require.Len(t, events, 1)
	assert.Equal(t, EventEnd, events[0].Type)
	assert.Equal(t, (3+15)*cfg.FrameSamples, len(events[0].Audio))
	assert.False(t, e.speaking)
	assert.Equal(t, 0, e.speechPositiveFrames)
}

func TestEngineResetIsIndependentOfPriorBytes(t *testing.T) {
	cfg := v5TestConfig()
	mock := adapter.NewMock(0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9)
	e, err := NewWithAdapter(cfg, mock)
	require.NoError(t, err)

	feedFrames(t, e, 9, cfg.FrameSamples)
	assert.True(t, e.speaking)

	require.NoError(t, e.Reset())
	assert.True(t, mock.ResetCalled())
	assert.False(t, e.speaking)
	assert.Equal(t, 0, e.speechPositiveFrames)
	assert.Equal(t, 0, e.preSpeech.len())
	assert.Equal(t, int64(0), e.currentSample)
}

func TestEnginePerFrameInferenceErrorDoesNotAdvanceState(t *testing.T) {
	cfg := v5TestConfig()
	mock := &adapter.Mock{Err: fmt.Errorf("boom")}
	e, err := NewWithAdapter(cfg, mock)
	require.NoError(t, err)

	events, err := e.PushBytes(silentFrame(cfg.FrameSamples))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.False(t, e.speaking)
	assert.Equal(t, 0, e.speechPositiveFrames)
}

func TestEngineProcessFrameWrongSizeIsDropped(t *testing.T) {
	cfg := v5TestConfig()
	mock := adapter.NewMock(0.9)
	e, err := NewWithAdapter(cfg, mock)
	require.NoError(t, err)

	events := e.ProcessFrame(make([]float32, cfg.FrameSamples+1))
	assert.Nil(t, events)
	assert.Len(t, mock.Calls(), 0)
	assert.False(t, e.speaking)
}

func TestSlicerLeavesPartialFrameQueued(t *testing.T) {
	cfg := v5TestConfig()
	mock := adapter.NewMock(0.0, 0.0)
	e, err := NewWithAdapter(cfg, mock)
	require.NoError(t, err)

	full := silentFrame(cfg.FrameSamples)
	partial := make([]byte, 10)

	events, err := e.PushBytes(append(full, partial...))
	require.NoError(t, err)
	assert.Equal(t, 1, countType(events, EventFrameProcessed))

	rest := make([]byte, cfg.FrameSamples*2-10)
	events, err = e.PushBytes(rest)
	require.NoError(t, err)
	assert.Equal(t, 1, countType(events, EventFrameProcessed))
}

func TestFloatInt16RoundTrip(t *testing.T) {
	assert.Equal(t, int16(-32767), floatToInt16(int16ToFloat32(-32768)))

	for s := -16384; s <= 16384; s += 977 {
		got := floatToInt16(int16ToFloat32(int16(s)))
		assert.Equal(t, int16(s), got, "s=%d", s)
	}
}

func TestFloatToInt16Clamps(t *testing.T) {
	assert.Equal(t, int16(32767), floatToInt16(2.0))
	assert.Equal(t, int16(-32768), floatToInt16(-2.0))
}

func TestFramesToPCMLittleEndian(t *testing.T) {
	pcm := framesToPCM([][]float32{{0, 0.5}})
	require.Len(t, pcm, 2)

	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(pcm[1]))
	assert.Equal(t, pcm[1], int16(binary.LittleEndian.Uint16(b)))
}
