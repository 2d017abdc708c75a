package agent

import (
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"Vidra/codec"

	"github.com/gorilla/websocket"
)

func (a *Agent) subscriberCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

func waitForSubscribers(t *testing.T, a *Agent, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for a.subscriberCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber count stuck at %d, want %d", a.subscriberCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamDeliversHeaderAndPayload(t *testing.T) {
	a := newTestAgent(t, nil)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, a, 1)

	payload := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}
	a.fanout(codec.EncodedImage{
		Buffer:        payload,
		Width:         640,
		Height:        480,
		TimestampNs:   20000,
		FrameType:     codec.FrameKey,
		CompleteFrame: true,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("header message type %d", msgType)
	}
	var header streamHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if header.Width != 640 || header.Height != 480 || !header.KeyFrame {
		t.Fatalf("header %+v", header)
	}
	if header.Size != len(payload) || header.TimestampNs != 20000 {
		t.Fatalf("header %+v", header)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if msgType != websocket.BinaryMessage || len(raw) != len(payload) {
		t.Fatalf("payload type %d size %d", msgType, len(raw))
	}

	conn.Close()
	waitForSubscribers(t, a, 0)
}

func TestSubscribeSchedulesKeyFrame(t *testing.T) {
	a := newTestAgent(t, nil)
	id, ch := a.Subscribe()
	defer a.Unsubscribe(id)
	if atomic.LoadInt32(&a.keyReq) != 1 {
		t.Fatalf("subscribe did not request a key frame")
	}
	if ch == nil {
		t.Fatalf("nil subscriber channel")
	}
}

func TestFanoutDropsLaggingSubscribers(t *testing.T) {
	a := newTestAgent(t, nil)
	id, ch := a.Subscribe()
	defer a.Unsubscribe(id)

	for i := 0; i < subscriberQueueDepth+3; i++ {
		a.fanout(codec.EncodedImage{TimestampNs: int64(i)})
	}
	// The queue holds the oldest frames; the overflow was dropped without
	// blocking the callback.
	if got := len(ch); got != subscriberQueueDepth {
		t.Fatalf("queued %d frames, want %d", got, subscriberQueueDepth)
	}
	img := <-ch
	if img.TimestampNs != 0 {
		t.Fatalf("first queued frame pts %d", img.TimestampNs)
	}
}
