package websockets

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, m *WebSocketManager, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d; want %d", m.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(conn *websocket.Conn, wait time.Duration) (model.ReportEvent, error) {
	var ev model.ReportEvent
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ev, err
	}
	err = json.Unmarshal(msg, &ev)
	return ev, err
}

func TestPublishReportEvent(t *testing.T) {
	m := NewWebSocketManager(logger.Discard())
	go m.Run()
	defer m.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HandleConnections(w, r, r.URL.Query().Get("user"), false)
	}))
	defer srv.Close()

	owner := uuid.New()
	ownerConn := dial(t, srv, owner.String())
	otherConn := dial(t, srv, uuid.New().String())
	waitForClients(t, m, 2)

	pendingID := uuid.New()
	m.PublishReportEvent(model.ReportEvent{Type: model.EventReportCreated, ReportID: pendingID, UserID: owner, Status: model.StatusPending})

	ev, err := readEvent(ownerConn, time.Second)
	if err != nil || ev.ReportID != pendingID {
		t.Fatalf("owner got %+v, %v", ev, err)
	}
	if _, err := readEvent(otherConn, 100*time.Millisecond); err == nil {
		t.Fatal("pending event leaked to another user")
	}
}

func TestBroadcastReachesEveryone(t *testing.T) {
	m := NewWebSocketManager(logger.Discard())
	go m.Run()
	defer m.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HandleConnections(w, r, r.URL.Query().Get("user"), false)
	}))
	defer srv.Close()

	conns := []*websocket.Conn{dial(t, srv, ""), dial(t, srv, uuid.New().String())}
	waitForClients(t, m, 2)

	id := uuid.New()
	m.PublishReportEvent(model.ReportEvent{Type: model.EventReportDeleted, ReportID: id})
	for i, c := range conns {
		ev, err := readEvent(c, time.Second)
		if err != nil || ev.Type != model.EventReportDeleted || ev.ReportID != id {
			t.Errorf("conn %d got %+v, %v", i, ev, err)
		}
	}
}
