package notify_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/referralhub/internal/app/notify"
	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*notify.Hub, *httptest.Server) {
	t.Helper()
	hub := notify.NewHub(zap.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("email"))
	}))
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, email string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?email=" + email
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitConnections(t *testing.T, hub *notify.Hub, email string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Connections(email) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("connections for %s never reached %d", email, want)
}

func TestHub_DeliversToRecipientOnly(t *testing.T) {
	hub, srv := startHub(t)

	a1 := dial(t, srv, "a@example.com")
	a2 := dial(t, srv, "a@example.com")
	b := dial(t, srv, "b@example.com")
	waitConnections(t, hub, "a@example.com", 2)
	waitConnections(t, hub, "b@example.com", 1)

	n := models.Notification{ID: primitive.NewObjectID(), RecipientEmail: "a@example.com", Title: "Hi"}
	hub.Publish(n)

	for i, conn := range []*websocket.Conn{a1, a2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("conn %d read: %v", i, err)
		}
		var got models.Notification
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != n.ID || got.Title != "Hi" {
			t.Errorf("conn %d got %+v", i, got)
		}
	}

	b.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := b.ReadMessage(); err == nil {
		t.Error("b should not receive a's notification")
	}
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, srv := startHub(t)

	conn := dial(t, srv, "c@example.com")
	waitConnections(t, hub, "c@example.com", 1)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitConnections(t, hub, "c@example.com", 0)
}

func TestHub_StopIsIdempotent(t *testing.T) {
	hub := notify.NewHub(zap.NewNop())
	go hub.Run()
	hub.Stop()
	hub.Stop()

	// after Stop these must not block
	hub.Publish(models.Notification{RecipientEmail: "x@example.com", Title: "late"})
	if n := hub.Connections("x@example.com"); n != 0 {
		t.Errorf("Connections after Stop = %d", n)
	}
}
