package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// dial opens a client/server websocket pair and registers the server side
// with the hub under userID.
func dial(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Add(userID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	// The handler registers the server side after the handshake; wait for it.
	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.Lock()
		_, ok := hub.conns[userID]
		hub.mu.Unlock()
		if ok {
			return client
		}
		if time.Now().After(deadline) {
			t.Fatalf("connection for %s never registered", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesOnlyTargetUser(t *testing.T) {
	hub := NewHub()
	alice := dial(t, hub, "alice")
	bob := dial(t, hub, "bob")

	hub.Publish("alice", map[string]string{"title": "Order Refunded"})

	alice.SetReadDeadline(time.Now().Add(time.Second))
	var got map[string]string
	if err := alice.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["title"] != "Order Refunded" {
		t.Errorf("payload = %v", got)
	}

	bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := bob.ReadJSON(&got); err == nil {
		t.Error("bob received alice's notification")
	}
}

func TestPublishToAbsentUserIsNoOp(t *testing.T) {
	hub := NewHub()
	hub.Publish("nobody", map[string]string{"title": "x"})
}

func TestRemoveClosesConnection(t *testing.T) {
	hub := NewHub()
	client := dial(t, hub, "alice")

	// Grab the server-side conn by publishing once, then remove it.
	hub.mu.Lock()
	var serverConn *websocket.Conn
	for c := range hub.conns["alice"] {
		serverConn = c
	}
	hub.mu.Unlock()
	if serverConn == nil {
		t.Fatal("no registered connection")
	}

	hub.Remove("alice", serverConn)

	hub.mu.Lock()
	_, still := hub.conns["alice"]
	hub.mu.Unlock()
	if still {
		t.Error("connection still registered after Remove")
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Error("client read should fail after server-side close")
	}

	// Publishing after removal must not panic or resurrect the entry.
	hub.Publish("alice", map[string]string{"title": "late"})
}
