package websockets

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewWebSocketManager initializes a WebSocketManager
func NewWebSocketManager(log *logger.Logger) *WebSocketManager {
	return &WebSocketManager{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn),
		send:       make(chan DirectMessage, 16),
		done:       make(chan struct{}),
		log:        log.WithComponent("websocket"),
	}
}

// Run serves registrations and deliveries until Stop is called.
func (manager *WebSocketManager) Run() {
	for {
		select {
		case <-manager.done:
			manager.mu.Lock()
			for conn := range manager.clients {
				conn.Close()
				delete(manager.clients, conn)
			}
			manager.mu.Unlock()
			return

		case client := <-manager.register:
			manager.mu.Lock()
			manager.clients[client.Conn] = client
			manager.mu.Unlock()

		case conn := <-manager.unregister:
			manager.mu.Lock()
			if client, exists := manager.clients[conn]; exists {
				delete(manager.clients, conn)
				conn.Close()
				manager.log.Debug("client disconnected", "user_id", client.UserID)
			}
			manager.mu.Unlock()

		case message := <-manager.broadcast:
			manager.mu.Lock()
			for _, client := range manager.clients {
				manager.write(client, message)
			}
			manager.mu.Unlock()

		case direct := <-manager.send:
			manager.mu.Lock()
			for _, client := range manager.clients {
				if client.IsAdmin || (direct.ReceiverID != "" && client.UserID == direct.ReceiverID) {
					manager.write(client, direct.Message)
				}
			}
			manager.mu.Unlock()
		}
	}
}

func (manager *WebSocketManager) Stop() {
	close(manager.done)
}

// write must be called with mu held.
func (manager *WebSocketManager) write(client *Client, message []byte) {
	_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
		client.Conn.Close()
		delete(manager.clients, client.Conn)
	}
}

// ClientCount returns the number of registered connections.
func (manager *WebSocketManager) ClientCount() int {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return len(manager.clients)
}

// HandleConnections upgrades the request and keeps the connection
// registered until the client goes away. userID is empty for anonymous
// viewers.
func (manager *WebSocketManager) HandleConnections(w http.ResponseWriter, r *http.Request, userID string, isAdmin bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{Conn: conn, UserID: userID, IsAdmin: isAdmin}
	select {
	case manager.register <- client:
	case <-manager.done:
		conn.Close()
		return
	}

	defer func() {
		select {
		case manager.unregister <- conn:
		case <-manager.done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var message Message
		if err := json.Unmarshal(msg, &message); err != nil {
			manager.log.Debug("invalid websocket frame", "error", err)
			continue
		}
		if message.Type == MsgTypePing {
			manager.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
			manager.mu.Unlock()
		}
	}
}

// PublishReportEvent fans ev out to viewers. Events about pending reports
// reach only their owner and administrators.
func (manager *WebSocketManager) PublishReportEvent(ev model.ReportEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		manager.log.Error("marshal report event", "error", err)
		return
	}

	if ev.Status == model.StatusPending {
		direct := DirectMessage{Message: payload}
		if ev.UserID != uuid.Nil {
			direct.ReceiverID = ev.UserID.String()
		}
		select {
		case manager.send <- direct:
		case <-manager.done:
		}
		return
	}

	select {
	case manager.broadcast <- payload:
	case <-manager.done:
	}
}
