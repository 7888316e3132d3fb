package interpreter

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
)

func TestListenerURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:9039/ws", ListenerURL("localhost:9039"))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 4*time.Second, retryDelay(2*time.Second, 1))
	assert.Equal(t, 16*time.Second, retryDelay(2*time.Second, 3))
	assert.Equal(t, maxRetryDelay, retryDelay(2*time.Second, 6))
	assert.Equal(t, maxRetryDelay, retryDelay(2*time.Second, 80))
}

func TestListen_ReceivesReadings(t *testing.T) {
	upgrader := websocket.Upgrader{}
	sent := NewReading(parsedRegistry(t), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.WriteMessage(websocket.TextMessage, sent.ToJsonBytes())
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *Reading, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		listen(ctx, "ws"+strings.TrimPrefix(server.URL, "http")+"/ws", time.Millisecond, func(reading *Reading) {
			received <- reading
			cancel()
		})
	}()

	select {
	case reading := <-received:
		assert.Equal(t, sent.Fields, reading.Fields)
	case <-time.After(5 * time.Second):
		t.Fatal("no reading received")
	}

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

func TestListen_GivesUp(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	server.Close()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		listen(context.Background(), url, time.Microsecond, func(*Reading) {})
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		require.FailNow(t, "listener kept retrying")
	}
}
