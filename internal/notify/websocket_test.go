package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWSSubscriberLifecycle(t *testing.T) {
	hub := NewHub(nil)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub := NewWSSubscriber(conn)
		hub.Subscribe(sub)
		defer hub.Unsubscribe(sub)
		sub.Serve()
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	waitFor(t, func() bool { return hub.Len() == 1 })

	// Client chatter is ignored and does not break the connection.
	if err := client.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	if err := client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64<<10))); err != nil {
		t.Fatalf("client write large: %v", err)
	}
	// Give the server time to read both frames; an oversized frame must not
	// end the subscription.
	time.Sleep(100 * time.Millisecond)
	if hub.Len() != 1 {
		t.Fatalf("subscribers = %d after large client message, want 1", hub.Len())
	}

	if err := hub.Broadcast(map[string]string{"event": "new_report"}); err != nil {
		t.Fatal(err)
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(msg) != `{"event":"new_report"}` {
		t.Fatalf("message = %s", msg)
	}

	client.Close()
	waitFor(t, func() bool { return hub.Len() == 0 })
}

func TestWSSubscriberSendAfterClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subs := make(chan *WSSubscriber, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		subs <- NewWSSubscriber(conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	sub := <-subs
	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := sub.Send([]byte("x")); err != ErrClosed {
		t.Fatalf("Send() error = %v, want ErrClosed", err)
	}
}
