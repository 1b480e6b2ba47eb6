package vad

import "github.com/google/uuid"

// EventType names one of the seven event variants the engine emits.
type EventType int

const (
	EventFrameProcessed EventType = iota
	EventStart
	EventRealStart
	EventChunk
	EventEnd
	EventMisfire
	EventError
)

// String implements fmt.Stringer.
func (t EventType) String() string {
	switch t {
	case EventFrameProcessed:
		return "frameProcessed"
	case EventStart:
		return "start"
	case EventRealStart:
		return "realStart"
	case EventChunk:
		return "chunk"
	case EventEnd:
		return "end"
	case EventMisfire:
		return "misfire"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the single variant type emitted by Engine.PushBytes and
// Engine.ForceEndSpeech. Only the fields relevant to Type are populated;
// the rest hold their zero value.
type Event struct {
	Type EventType

	// T is the frame boundary timestamp in seconds (CurrentSample / SampleRate).
	T float64

	// UtteranceID correlates every event belonging to the same
	// start..(end|misfire) span. Zero UUID outside an utterance.
	UtteranceID uuid.UUID

	// IsSpeech/NotSpeech/Frame populate EventFrameProcessed only.
	IsSpeech  float32
	NotSpeech float32
	Frame     []float32

	// Audio populates EventChunk and EventEnd: little-endian PCM16, mono.
	Audio []int16
	// IsFinal is true only for the single optional closing chunk of an
	// utterance.
	IsFinal bool

	// Message populates EventError.
	Message string
}
