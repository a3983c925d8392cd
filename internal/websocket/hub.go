package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/songforge/api/internal/model"
)

// Message types pushed to subscribers
const (
	MessageTypeTerminal = "terminal"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// TerminalMessage announces that a job reached a terminal state
type TerminalMessage struct {
	Type     string           `json:"type"`
	TaskID   string           `json:"taskId"`
	Status   model.SongStatus `json:"status"`
	AudioURL *string          `json:"audioUrl,omitempty"`
}

type controlMessage struct {
	Type string `json:"type"`
}

// Client represents a WebSocket subscriber for one task
type Client struct {
	TaskID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub maintains active WebSocket connections grouped by task ID and pushes
// terminal transitions to them as they commit.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	logger *slog.Logger
	mu     sync.RWMutex
}

type broadcastMessage struct {
	TaskID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.TaskID] == nil {
				h.clients[client.TaskID] = make(map[*Client]bool)
			}
			h.clients[client.TaskID][client] = true
			h.mu.Unlock()
			h.logger.Debug("ws client registered", "taskId", client.TaskID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.TaskID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.TaskID)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("ws client unregistered", "taskId", client.TaskID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.TaskID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyTerminal pushes a terminal transition to all subscribers of the task
func (h *Hub) NotifyTerminal(song *model.Song) {
	msg := TerminalMessage{
		Type:     MessageTypeTerminal,
		TaskID:   song.TaskID,
		Status:   song.Status,
		AudioURL: song.AudioURL,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("failed to marshal terminal message", "error", err)
		return
	}

	h.broadcast <- &broadcastMessage{
		TaskID:  song.TaskID,
		Message: data,
	}
}

// HandleConnection handles a WebSocket connection subscribed to one task
func (h *Hub) HandleConnection(c *websocket.Conn, taskID string) {
	client := &Client{
		TaskID: taskID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("ws read error", "error", err)
			}
			break
		}

		var msg controlMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == MessageTypePing {
			pong, _ := json.Marshal(controlMessage{Type: MessageTypePong})
			client.Send <- pong
		}
	}
}
