package websockets

import (
	"sync"

	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/gorilla/websocket"
)

// MsgTypePing asks the server for a pong frame.
const MsgTypePing = "ping"

// Client represents a connected map viewer. UserID is empty for
// anonymous viewers, who only receive public events.
type Client struct {
	Conn    *websocket.Conn
	UserID  string
	IsAdmin bool
}

type WebSocketManager struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn
	send       chan DirectMessage
	done       chan struct{}
	mu         sync.Mutex
	log        *logger.Logger
}

// DirectMessage is delivered to every connection of one user.
type DirectMessage struct {
	ReceiverID string `json:"receiver_id"`
	Message    []byte `json:"message"`
}

// Message is an incoming client frame.
type Message struct {
	Type string `json:"type"`
}
