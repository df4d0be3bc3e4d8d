package feed

import (
	"encoding/json"
	"sync"
	"time"

	"swarabox/logger"

	"github.com/gorilla/websocket"
)

// Event is a message pushed to comment-feed subscribers of a song.
type Event struct {
	Type      string          `json:"type"` // currently only "comment"
	SongID    int64           `json:"songId"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client is one websocket subscriber to a song's comment feed.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	SongID int64
	UserID int64
}

// Hub fans comment events out to subscribers, keyed by song id. Membership
// is serialized in the Run goroutine over channels.
type Hub struct {
	songs map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastEvent

	mu   sync.RWMutex
	done chan struct{}
}

type broadcastEvent struct {
	songID  int64
	message []byte
}

// NewHub creates a comment-feed hub.
func NewHub() *Hub {
	return &Hub{
		songs:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case evt := <-h.broadcast:
			h.broadcastToSong(evt)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop stops the hub.
func (h *Hub) Stop() {
	close(h.done)
}

// Register subscribes a client.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastEvent pushes an event to all subscribers of its song.
func (h *Hub) BroadcastEvent(evt *Event) {
	evt.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Warn("failed to marshal feed event", logger.ErrorField(err))
		return
	}
	select {
	case h.broadcast <- &broadcastEvent{songID: evt.SongID, message: data}:
	default:
		logger.Warn("feed broadcast buffer full, dropping event",
			logger.Int64("songId", evt.SongID))
	}
}

// SubscriberCount returns how many clients follow a song.
func (h *Hub) SubscriberCount(songID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.songs[songID])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.songs[client.SongID] == nil {
		h.songs[client.SongID] = make(map[*Client]bool)
	}
	h.songs[client.SongID][client] = true

	logger.Info("feed client registered",
		logger.Int64("songId", client.SongID),
		logger.Int64("user", client.UserID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.songs[client.SongID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client.Send)
			if len(clients) == 0 {
				delete(h.songs, client.SongID)
			}
		}
	}
}

func (h *Hub) broadcastToSong(evt *broadcastEvent) {
	h.mu.RLock()
	clients, ok := h.songs[evt.songID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	// Drop stuck clients inline: this runs in the Run goroutine, the only
	// reader of h.unregister, so sending on it here would deadlock the hub.
	var stuck []*Client
	for _, client := range clientList {
		select {
		case client.Send <- evt.message:
		default:
			stuck = append(stuck, client)
		}
	}
	for _, client := range stuck {
		h.unregisterClient(client)
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.songs {
		for client := range clients {
			close(client.Send)
		}
	}
	h.songs = make(map[int64]map[*Client]bool)
}

// ReadPump drains the connection until it closes; subscribers send nothing
// meaningful, reads exist to surface disconnects and answer pings.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("feed websocket read error",
					logger.ErrorField(err),
					logger.Int64("songId", c.SongID))
			}
			return
		}
	}
}

// WritePump forwards hub messages to the connection with keepalive pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
