// Package rtcingest reads Opus-encoded RTP packets off a negotiated
// WebRTC audio track and drives a *vad.Engine with them, the way a
// WebRTC connection's remote-track reader decodes a remote track into
// raw PCM for a media pipeline.
//
// Negotiating the PeerConnection itself (SDP exchange, ICE, DTLS) is a
// platform-bindings concern outside this package's scope; rtcingest
// starts from an already-connected *webrtc.TrackRemote and owns only
// the minimal decode-and-downsample work needed to reach 16 kHz mono
// PCM16.
package rtcingest

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/hraban/opus"
	"github.com/pion/webrtc/v4"

	"github.com/vadstream/vadstream/pkg/vad"
)

const (
	// TrackSampleRate is the sample rate WebRTC Opus audio tracks in
	// this codebase are negotiated at.
	TrackSampleRate = 48000
	// TrackChannels is fixed to mono; the vad.Engine boundary does not
	// accept multi-channel audio.
	TrackChannels = 1
	// EngineSampleRate is the fixed rate the vad.Engine boundary requires.
	EngineSampleRate = 16000

	// opusFrameSamples is large enough to hold any Opus frame duration
	// pion/webrtc produces (up to 120ms at 48kHz).
	opusFrameSamples = TrackSampleRate * 120 / 1000
)

// Reader decodes RTP/Opus packets from a *webrtc.TrackRemote, downsamples
// the result to 16 kHz mono, and pushes the bytes into a *vad.Engine.
type Reader struct {
	track   *webrtc.TrackRemote
	engine  *vad.Engine
	decoder *opus.Decoder

	pcmBuf []int16
}

// NewReader wraps track and engine. track must carry Opus audio; engine
// must already be configured for 16 kHz mono PCM16.
func NewReader(track *webrtc.TrackRemote, engine *vad.Engine) (*Reader, error) {
	decoder, err := opus.NewDecoder(TrackSampleRate, TrackChannels)
	if err != nil {
		return nil, fmt.Errorf("rtcingest: create opus decoder: %w", err)
	}

	return &Reader{
		track:   track,
		engine:  engine,
		decoder: decoder,
		pcmBuf:  make([]int16, opusFrameSamples),
	}, nil
}

// Run reads RTP packets until ctx is cancelled, the track closes, or a
// non-recoverable read error occurs. It blocks; run it in its own
// goroutine. Every vad.Event produced by a decoded packet is delivered
// to onEvent in generation order.
func (r *Reader) Run(ctx context.Context, onEvent func(vad.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, _, err := r.track.ReadRTP()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("rtcingest: read rtp: %w", err)
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		n, err := r.decoder.Decode(pkt.Payload, r.pcmBuf)
		if err != nil {
			log.Printf("rtcingest: opus decode error: %v", err)
			continue
		}

		pcm16k := downsampleAveraging(r.pcmBuf[:n], TrackSampleRate, EngineSampleRate)
		events, err := r.engine.PushBytes(int16ToLEBytes(pcm16k))
		if err != nil {
			log.Printf("rtcingest: push bytes: %v", err)
			continue
		}
		for _, ev := range events {
			onEvent(ev)
		}
	}
}

// downsampleAveraging is a trivial averaging resampler: it averages
// each block of inRate/outRate input samples into one output sample.
// This is sufficient for VAD probability estimation; it is not a
// production-quality resampler and makes no anti-aliasing claim.
func downsampleAveraging(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}

	ratio := float64(inRate) / float64(outRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]int16, outLen)

	for i := 0; i < outLen; i++ {
		start := int(float64(i) * ratio)
		end := int(float64(i+1) * ratio)
		if end > len(in) {
			end = len(in)
		}
		if end <= start {
			end = start + 1
		}
		var sum int32
		count := 0
		for j := start; j < end && j < len(in); j++ {
			sum += int32(in[j])
			count++
		}
		if count == 0 {
			continue
		}
		out[i] = int16(sum / int32(count))
	}
	return out
}

func int16ToLEBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
