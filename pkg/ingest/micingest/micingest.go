// Package micingest opens the default capture device via malgo and
// streams 16 kHz mono PCM16 into a *vad.Engine, the way a local audio
// connection's startAudioCapture drives a pipeline from a malgo.Device
// capture callback.
//
// micingest owns device capture only; it never inspects sample values
// or makes detection decisions itself.
package micingest

import (
	"context"
	"fmt"
	"log"

	"github.com/gen2brain/malgo"

	"github.com/vadstream/vadstream/pkg/vad"
)

const (
	// CaptureSampleRate matches the fixed vad.Engine boundary rate; the
	// engine does not accept other sample rates.
	CaptureSampleRate = 16000
	// CaptureChannels is fixed to mono.
	CaptureChannels = 1
	// periodMs is the malgo device callback period, matching the
	// teacher's 20ms capture period.
	periodMs = 20
)

// Recorder drives engine from the default system capture device.
type Recorder struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	engine *vad.Engine

	onEvent func(vad.Event)
	onErr   func(error)
}

// New allocates a malgo context and opens the default capture device
// configured for 16 kHz mono S16 audio. It does not start capturing
// until Start is called.
func New(engine *vad.Engine, onEvent func(vad.Event), onErr func(error)) (*Recorder, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {})
	if err != nil {
		return nil, fmt.Errorf("micingest: init malgo context: %w", err)
	}

	r := &Recorder{
		ctx:     malgoCtx,
		engine:  engine,
		onEvent: onEvent,
		onErr:   onErr,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.PeriodSizeInMilliseconds = periodMs
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = CaptureChannels
	deviceConfig.SampleRate = CaptureSampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: r.onData,
	})
	if err != nil {
		malgoCtx.Uninit()
		return nil, fmt.Errorf("micingest: init capture device: %w", err)
	}
	r.device = device

	return r, nil
}

func (r *Recorder) onData(outputSamples, inputSamples []byte, frameCount uint32) {
	data := make([]byte, len(inputSamples))
	copy(data, inputSamples)

	events, err := r.engine.PushBytes(data)
	if err != nil {
		if r.onErr != nil {
			r.onErr(fmt.Errorf("micingest: push bytes: %w", err))
		} else {
			log.Printf("micingest: push bytes: %v", err)
		}
		return
	}
	for _, ev := range events {
		r.onEvent(ev)
	}
}

// Start begins capturing. It returns once the device has started; audio
// delivery happens on malgo's own callback goroutine until ctx is
// cancelled or Stop is called.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.device.Start(); err != nil {
		return fmt.Errorf("micingest: start capture device: %w", err)
	}

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// Stop halts capture and releases the device and context. Safe to call
// more than once.
func (r *Recorder) Stop() error {
	if r.device != nil {
		r.device.Stop()
		r.device.Uninit()
		r.device = nil
	}
	if r.ctx != nil {
		r.ctx.Uninit()
		r.ctx = nil
	}
	return nil
}
