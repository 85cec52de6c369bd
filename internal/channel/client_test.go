package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func upgradeServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

// holdOpen keeps the server side alive until the client hangs up.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case env, ok := <-c.Events():
		if !ok {
			t.Fatal("events channel closed unexpectedly")
		}
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return Envelope{}
	}
}

func TestEmitAndReceive(t *testing.T) {
	got := make(chan Envelope, 1)
	ts := upgradeServer(t, func(conn *websocket.Conn) {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("server read: %v", err)
			return
		}
		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			t.Errorf("server unmarshal: %v", err)
			return
		}
		got <- env

		reply, _ := NewEnvelope("room:joined", map[string]string{"code": "KERO42"})
		data, _ := json.Marshal(reply)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Errorf("server write: %v", err)
			return
		}
		holdOpen(conn)
	})

	client, err := Dial(context.Background(), wsURL(ts), nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Emit("room:join", map[string]string{"roomCode": "KERO42", "nickname": "mia"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case env := <-got:
		if env.Event != "room:join" {
			t.Fatalf("server saw event %q, want room:join", env.Event)
		}
		var payload map[string]string
		if err := env.Decode(&payload); err != nil || payload["nickname"] != "mia" {
			t.Fatalf("server payload = %+v (err %v)", payload, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the emit")
	}

	env := receive(t, client)
	if env.Event != "room:joined" {
		t.Fatalf("event = %q, want room:joined", env.Event)
	}
	var payload map[string]string
	if err := env.Decode(&payload); err != nil || payload["code"] != "KERO42" {
		t.Fatalf("payload = %+v (err %v)", payload, err)
	}
}

func TestEventsArriveInOrder(t *testing.T) {
	const count = 25
	ts := upgradeServer(t, func(conn *websocket.Conn) {
		for i := 0; i < count; i++ {
			env, _ := NewEnvelope("game:timeUpdate", map[string]int{"seq": i})
			data, _ := json.Marshal(env)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				t.Errorf("server write %d: %v", i, err)
				return
			}
		}
		holdOpen(conn)
	})

	client, err := Dial(context.Background(), wsURL(ts), nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	for i := 0; i < count; i++ {
		env := receive(t, client)
		var payload map[string]int
		if err := env.Decode(&payload); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if payload["seq"] != i {
			t.Fatalf("seq = %d at position %d, want in-order delivery", payload["seq"], i)
		}
	}
}

func TestEventsChannelClosesWhenServerDrops(t *testing.T) {
	release := make(chan struct{})
	ts := upgradeServer(t, func(conn *websocket.Conn) {
		<-release
	})

	client, err := Dial(context.Background(), wsURL(ts), nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	close(release)
	select {
	case _, ok := <-client.Events():
		if ok {
			t.Fatal("expected the events channel to close, got an envelope")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events channel never closed after server drop")
	}
}

func TestEmitAfterClose(t *testing.T) {
	ts := upgradeServer(t, holdOpen)

	client, err := Dial(context.Background(), wsURL(ts), nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Close()
	client.Close()

	if err := client.Emit("room:leave", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Emit after close = %v, want ErrClosed", err)
	}
}

func TestMalformedFrameSkipped(t *testing.T) {
	ts := upgradeServer(t, func(conn *websocket.Conn) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
			t.Errorf("server write: %v", err)
			return
		}
		env, _ := NewEnvelope("game:resumed", nil)
		data, _ := json.Marshal(env)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Errorf("server write: %v", err)
			return
		}
		holdOpen(conn)
	})

	client, err := Dial(context.Background(), wsURL(ts), nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	env := receive(t, client)
	if env.Event != "game:resumed" {
		t.Fatalf("event = %q, want game:resumed after skipping garbage", env.Event)
	}
}

func TestDialFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websocket here", http.StatusNotFound)
	}))
	t.Cleanup(ts.Close)

	if _, err := Dial(context.Background(), wsURL(ts), nil, DefaultConfig()); err == nil {
		t.Fatal("expected dial to fail against a non-websocket endpoint")
	}
}
