package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the gin middleware in front
	},
}

// Client represents a connected WebSocket client
type Client struct {
	conn     *websocket.Conn
	username string
	matchID  string
	inLobby  bool
	send     chan []byte
}

// Hub maintains the set of active clients: one room per match plus the
// venue-wide lobby feed.
type Hub struct {
	clients    map[string]*Client            // username -> Client
	matchRooms map[string]map[string]*Client // matchID -> username -> Client
	lobby      map[string]*Client            // username -> Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		matchRooms: make(map[string]map[string]*Client),
		lobby:      make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes register/unregister events. Start it once per process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, exists := h.clients[client.username]; exists {
				log.Printf("[WS] %s reconnecting - closing old connection", client.username)
				old.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
					time.Now().Add(5*time.Second))
				old.conn.Close()
				select {
				case <-old.send:
				default:
					close(old.send)
				}
				h.removeLocked(old)
			}
			h.clients[client.username] = client
			if client.matchID != "" {
				if _, exists := h.matchRooms[client.matchID]; !exists {
					h.matchRooms[client.matchID] = make(map[string]*Client)
				}
				h.matchRooms[client.matchID][client.username] = client
			}
			if client.inLobby {
				h.lobby[client.username] = client
			}
			h.mu.Unlock()
			log.Printf("[WS] %s connected (match=%q lobby=%v)", client.username, client.matchID, client.inLobby)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, exists := h.clients[client.username]; exists && current == client {
				h.removeLocked(client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WS] %s disconnected", client.username)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	delete(h.clients, client.username)
	delete(h.lobby, client.username)
	if room, exists := h.matchRooms[client.matchID]; exists {
		delete(room, client.username)
		if len(room) == 0 {
			delete(h.matchRooms, client.matchID)
		}
	}
}

// BroadcastToMatch sends a message to everyone in a match room
func (h *Hub) BroadcastToMatch(matchID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, exists := h.matchRooms[matchID]; exists {
		for _, client := range room {
			select {
			case client.send <- data:
			default:
				log.Printf("Client send buffer full for %s in match %s, dropping message", client.username, matchID)
			}
		}
	}
}

// BroadcastToLobby sends a message to every lobby watcher
func (h *Hub) BroadcastToLobby(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.lobby {
		select {
		case client.send <- data:
		default:
			log.Printf("Lobby send buffer full for %s, dropping message", client.username)
		}
	}
}

// SendToUser sends a message to a specific connected user
func (h *Hub) SendToUser(username string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[username]; exists {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] SendToUser dropped message for %s (buffer full)", username)
		}
	}
}

type wsMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"gameId,omitempty"`
}

// HandleWebSocket upgrades the connection for an authenticated user. The
// verify callback maps the query token onto a username; ?game= joins a
// match room, ?lobby=1 subscribes to the lobby feed.
func HandleWebSocket(hub *Hub, verify func(token string) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		username, err := verify(token)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			conn:     conn,
			username: username,
			matchID:  c.Query("game"),
			inLobby:  c.Query("lobby") == "1" || c.Query("game") == "",
			send:     make(chan []byte, 256),
		}

		hub.register <- client

		go client.writePump()
		go client.readPump(hub)
	}
}

// readPump consumes client frames. Clients only send room switches; all
// game actions go over the HTTP API.
func (c *Client) readPump(hub *Hub) {
	defer func() {
		hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error for %s: %v", c.username, err)
			}
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "join_game":
			if msg.MatchID != "" {
				hub.moveToMatch(c, msg.MatchID)
			}
		case "leave_game":
			hub.moveToMatch(c, "")
		}
	}
}

func (h *Hub) moveToMatch(c *Client, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, exists := h.matchRooms[c.matchID]; exists {
		delete(room, c.username)
		if len(room) == 0 {
			delete(h.matchRooms, c.matchID)
		}
	}
	c.matchID = matchID
	if matchID == "" {
		h.lobby[c.username] = c
		return
	}
	if _, exists := h.matchRooms[matchID]; !exists {
		h.matchRooms[matchID] = make(map[string]*Client)
	}
	h.matchRooms[matchID][c.username] = c
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed, connection is being replaced or cleaned up.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.username, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket ping error for %s: %v", c.username, err)
				return
			}
		}
	}
}
