package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"keychord/internal/chord"
	"keychord/internal/hotkey"
	"keychord/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 64
	readLimit  = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local tool; the bearer token is the access control.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub tracks WebSocket clients. Clients feed key events in and receive chord notifications.
type Hub struct {
	engine Engine

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
}

type wsClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	addr string

	// keys this client holds down, released on disconnect
	held map[string]bool
}

func newHub(engine Engine) *Hub {
	return &Hub{
		engine:     engine,
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WS: client %s connected from %s. Total clients: %d", c.id, c.addr, n)

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*wsClient
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				log.Printf("WS: dropping slow client %s", c.id)
				h.drop(c)
			}

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	log.Printf("WS: client %s disconnected. Total clients: %d", c.id, len(h.clients))
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastChord sends a chord notification to every client
func (h *Hub) BroadcastChord(name string, id chord.ID, origin string) {
	msg, err := protocol.NewMessage(protocol.TypeChord, protocol.ChordPayload{
		Name:   name,
		ID:     int64(id),
		Origin: origin,
		Time:   time.Now().UTC(),
	})
	if err != nil {
		log.Printf("WS: %v", err)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: failed to marshal chord message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: failed to upgrade connection: %v", err)
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		addr: r.RemoteAddr,
		held: make(map[string]bool),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump feeds the client's key events into the engine
func (c *wsClient) readPump() {
	defer func() {
		c.releaseHeld()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WS: read error from %s: %v", c.id, err)
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: invalid message from %s: %v", c.id, err)
		return
	}

	switch msg.Type {
	case protocol.TypeKey:
		var key protocol.KeyPayload
		if err := msg.Decode(&key); err != nil || key.Key == "" {
			log.Printf("WS: invalid key message from %s: %v", c.id, err)
			return
		}
		if key.Down {
			c.held[key.Key] = true
		} else {
			delete(c.held, key.Key)
		}
		c.feed(key.Key, key.Down)

	case protocol.TypePing:
	default:
		log.Printf("WS: ignoring %q message from %s", msg.Type, c.id)
	}
}

func (c *wsClient) feed(key string, down bool) {
	ev := hotkey.KeyEvent{Key: key, Down: down, Origin: c.id}
	if err := c.hub.engine.Feed(ev); err != nil {
		log.Printf("WS: dropped key event from %s: %v", c.id, err)
	}
}

// releaseHeld releases every key the client left pressed when it went away.
func (c *wsClient) releaseHeld() {
	for key := range c.held {
		c.feed(key, false)
	}
	clear(c.held)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
