// Command vadstream drives a *vad.Engine over a file, a websocket, or a
// live microphone and prints the resulting event stream as JSON lines,
// mirroring the flag+godotenv bootstrapping every teacher cmd/ entrypoint
// uses.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/vadstream/vadstream/pkg/ingest/micingest"
	"github.com/vadstream/vadstream/pkg/ingest/wsingest"
	"github.com/vadstream/vadstream/pkg/modelsource"
	"github.com/vadstream/vadstream/pkg/vad"
)

func main() {
	_ = godotenv.Load()

	var (
		mode       = flag.String("mode", "file", "input mode: file, ws, or mic")
		inputPath  = flag.String("input", "", "path to a raw PCM16 16kHz mono file (mode=file)")
		listenAddr = flag.String("listen", ":8090", "websocket listen address (mode=ws)")
		modelPath  = flag.String("model", os.Getenv("VAD_MODEL_PATH"), "path to the Silero ONNX model file")
		modelURL   = flag.String("model-url", os.Getenv("VAD_MODEL_URL"), "URL to fetch the Silero ONNX model from")
		modelName  = flag.String("model-name", "v5", "model architecture: v4 or v5")
		chunk      = flag.Int("chunk-frames", 0, "in-flight chunk width in frames; 0 disables chunking")
	)
	flag.Parse()

	model := vad.ModelV5
	if *modelName == "v4" {
		model = vad.ModelV4
	}

	var src modelsource.Source
	switch {
	case *modelPath != "":
		src = modelsource.Source{Path: *modelPath}
	case *modelURL != "":
		src = modelsource.Source{URL: *modelURL}
	default:
		log.Fatal("vadstream: one of -model or -model-url is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := []vad.Option{
		vad.WithModel(model),
		vad.WithModelSource(src),
		vad.WithNumFramesToEmit(*chunk),
	}

	switch *mode {
	case "file":
		runFile(ctx, *inputPath, opts)
	case "ws":
		runWebsocket(ctx, *listenAddr, opts)
	case "mic":
		runMic(ctx, opts)
	default:
		log.Fatalf("vadstream: unknown mode %q, want file, ws, or mic", *mode)
	}
}

func runFile(ctx context.Context, path string, opts []vad.Option) {
	if path == "" {
		log.Fatal("vadstream: -input is required for mode=file")
	}
	engine, err := vad.New(ctx, opts...)
	if err != nil {
		log.Fatalf("vadstream: construct engine: %v", err)
	}
	defer engine.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("vadstream: read %s: %v", path, err)
	}

	const pushSize = 4096
	for off := 0; off < len(data); off += pushSize {
		end := off + pushSize
		if end > len(data) {
			end = len(data)
		}
		events, err := engine.PushBytes(data[off:end])
		if err != nil {
			log.Fatalf("vadstream: push bytes: %v", err)
		}
		emitAll(events)
	}
}

func runWebsocket(ctx context.Context, addr string, opts []vad.Option) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/vad", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("vadstream: upgrade: %v", err)
			return
		}

		engine, err := vad.New(r.Context(), opts...)
		if err != nil {
			log.Printf("vadstream: construct engine: %v", err)
			conn.Close()
			return
		}

		listener := wsingest.NewListener(conn, engine, wsingest.DefaultConfig())
		go func() {
			for ev := range listener.Events() {
				emit(ev)
			}
			engine.Release()
		}()

		if err := listener.Run(ctx); err != nil {
			log.Printf("vadstream: listener run: %v", err)
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("vadstream: listening for websocket audio on %s/vad", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("vadstream: serve: %v", err)
	}
}

func runMic(ctx context.Context, opts []vad.Option) {
	engine, err := vad.New(ctx, opts...)
	if err != nil {
		log.Fatalf("vadstream: construct engine: %v", err)
	}
	defer engine.Release()

	rec, err := micingest.New(engine, emit, func(err error) { log.Printf("vadstream: %v", err) })
	if err != nil {
		log.Fatalf("vadstream: open microphone: %v", err)
	}
	if err := rec.Start(ctx); err != nil {
		log.Fatalf("vadstream: start microphone: %v", err)
	}

	<-ctx.Done()
	rec.Stop()
}

func emitAll(events []vad.Event) {
	for _, ev := range events {
		emit(ev)
	}
}

// emit prints one event as a JSON line. The Frame/Audio payloads are
// intentionally excluded from the printed form (only their lengths are)
// to keep the CLI's output readable; nothing about the engine truncates
// them.
func emit(ev vad.Event) {
	type line struct {
		Type        string  `json:"type"`
		T           float64 `json:"t"`
		UtteranceID string  `json:"utterance_id,omitempty"`
		IsSpeech    float32 `json:"is_speech,omitempty"`
		NotSpeech   float32 `json:"not_speech,omitempty"`
		FrameLen    int     `json:"frame_len,omitempty"`
		AudioLen    int     `json:"audio_len,omitempty"`
		IsFinal     bool    `json:"is_final,omitempty"`
		Message     string  `json:"message,omitempty"`
	}

	l := line{
		Type:      ev.Type.String(),
		T:         ev.T,
		IsSpeech:  ev.IsSpeech,
		NotSpeech: ev.NotSpeech,
		FrameLen:  len(ev.Frame),
		AudioLen:  len(ev.Audio),
		IsFinal:   ev.IsFinal,
		Message:   ev.Message,
	}
	if ev.UtteranceID.String() != "00000000-0000-0000-0000-000000000000" {
		l.UtteranceID = ev.UtteranceID.String()
	}

	b, err := json.Marshal(l)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vadstream: marshal event: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
