package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wricardo/circuit-challenge/game/engine"
	"github.com/wricardo/circuit-challenge/render/stream"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Inbound actions a viewer may send
const (
	ActionDrive  = "drive"
	ActionAnswer = "answer"
	ActionSkip   = "skip"
)

// Inbound is a message sent by a browser client driving its own vehicle
type Inbound struct {
	Action    string              `json:"action"`
	VehicleID string              `json:"vehicle_id"`
	Controls  *engine.ControlInput `json:"controls,omitempty"`
	Answer    *int                `json:"answer,omitempty"`
}

// InboundHandler receives client messages for a race. Errors are sent back
// to the client that caused them.
type InboundHandler func(raceID string, msg Inbound) error

// Client represents a WebSocket client watching one race
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	raceID string
}

// Hub maintains the set of active clients per race and fans published
// messages out to them. It implements stream.Publisher.
type Hub struct {
	mu    sync.RWMutex
	races map[string]map[*Client]bool

	// Messages published from race goroutines
	broadcast chan stream.Message

	inbound InboundHandler
	log     zerolog.Logger
	done    chan struct{}
	once    sync.Once
}

// NewHub creates a new WebSocket hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		races:     make(map[string]map[*Client]bool),
		broadcast: make(chan stream.Message, engine.WebSocketBufferSize),
		log:       log,
		done:      make(chan struct{}),
	}
}

// HandleInbound installs the handler for client messages
func (h *Hub) HandleInbound(fn InboundHandler) {
	h.inbound = fn
}

// Run starts the hub's broadcast loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop ends Run
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Publish implements stream.Publisher. It never blocks the race loop;
// messages are dropped when the hub falls behind.
func (h *Hub) Publish(msg stream.Message) {
	if h.ClientCount(msg.RaceID) == 0 {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Debug().Str("race", msg.RaceID).Str("kind", msg.Kind).Msg("hub backlog full, message dropped")
	}
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, raceID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, engine.WebSocketBufferSize),
		raceID: raceID,
	}
	h.registerClient(client)

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of clients watching a race
func (h *Hub) ClientCount(raceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.races[raceID])
}

// registerClient adds a client to a race
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.races[client.raceID] == nil {
		h.races[client.raceID] = make(map[*Client]bool)
	}
	h.races[client.raceID][client] = true
	n := len(h.races[client.raceID])
	h.mu.Unlock()

	h.log.Debug().Str("race", client.raceID).Int("clients", n).Msg("client registered")
}

// unregisterClient removes a client from a race
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.races[client.raceID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.races, client.raceID)
	}
	h.log.Debug().Str("race", client.raceID).Int("clients", len(clients)).Msg("client unregistered")
}

// broadcastMessage sends a message to all clients of a race
func (h *Hub) broadcastMessage(message stream.Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to marshal broadcast message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.races[message.RaceID] {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it
			h.removeLocked(client)
		}
	}
}

func (c *Client) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.races[c.raceID][c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump reads client actions until the connection closes
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		if c.hub.inbound == nil {
			continue
		}
		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(map[string]string{"error": "invalid message"})
			continue
		}
		if err := c.hub.inbound(c.raceID, msg); err != nil {
			c.reply(map[string]string{"error": err.Error()})
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
