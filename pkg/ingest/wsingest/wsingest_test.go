package wsingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadstream/vadstream/pkg/vad"
	"github.com/vadstream/vadstream/pkg/vad/adapter"
)

func newTestEngine(t *testing.T, probs []float32) *vad.Engine {
	t.Helper()
	e, err := vad.NewWithAdapter(vad.Config{Model: vad.ModelV5}, adapter.NewMock(probs...))
	require.NoError(t, err)
	return e
}

func TestListenerRunDeliversFrameProcessedEvents(t *testing.T) {
	engine := newTestEngine(t, []float32{0, 0, 0})
	var upgrader = websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		listener := NewListener(conn, engine, DefaultConfig())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			for range listener.Events() {
			}
		}()
		listener.Run(ctx)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	frame := make([]byte, engine.Config().FrameSamples*2)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, engine.TotalFramesProcessed())
}
