package network

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"keychord/internal/hotkey"
	"keychord/internal/protocol"
)

const (
	reconnectDelay = 5 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
)

// Forwarder sends this machine's key events to another keychord daemon
type Forwarder struct {
	hostAddr string
	token    string
	send     chan protocol.Message
	done     chan struct{}
	closeOne sync.Once

	// OnChord is called for every chord notification the remote daemon sends
	OnChord func(protocol.ChordPayload)

	mu          sync.Mutex
	isConnected bool
}

// NewForwarder creates a forwarder for the daemon at hostAddr ("host:port")
func NewForwarder(hostAddr, token string) *Forwarder {
	return &Forwarder{
		hostAddr: hostAddr,
		token:    token,
		send:     make(chan protocol.Message, 256),
		done:     make(chan struct{}),
	}
}

// Start begins the connect loop
func (f *Forwarder) Start() {
	go f.loop()
}

func (f *Forwarder) loop() {
	for {
		f.connect()

		select {
		case <-f.done:
			return
		case <-time.After(reconnectDelay):
			log.Println("Forwarder: Attempting reconnection...")
		}
	}
}

func (f *Forwarder) connect() {
	u := url.URL{Scheme: "ws", Host: f.hostAddr, Path: "/ws"}
	header := http.Header{}
	if f.token != "" {
		header.Set("Authorization", "Bearer "+f.token)
	}

	log.Printf("Forwarder: Connecting to %s", u.String())
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Printf("Forwarder: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	f.setConnected(true)
	defer f.setConnected(false)
	log.Printf("Forwarder: Connected to %s", f.hostAddr)

	connDone := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		f.writePump(conn, connDone)
	}()

	f.readPump(conn)
	close(connDone)
	<-writerDone
}

func (f *Forwarder) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Forwarder: Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Forwarder: Invalid message: %v", err)
			continue
		}
		f.handleMessage(msg)
	}
}

func (f *Forwarder) writePump(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-f.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("Forwarder: Write error: %v", err)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-connDone:
			return

		case <-f.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			conn.Close()
			return
		}
	}
}

func (f *Forwarder) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeChord:
		var payload protocol.ChordPayload
		if err := msg.Decode(&payload); err != nil {
			log.Printf("Forwarder: %v", err)
			return
		}
		log.Printf("Forwarder: Remote chord %q fired (origin %s)", payload.Name, payload.Origin)
		if f.OnChord != nil {
			f.OnChord(payload)
		}
	}
}

// SendKey queues a key event for the remote daemon. Events are dropped while
// disconnected so stale presses are not replayed on reconnect.
func (f *Forwarder) SendKey(ev hotkey.KeyEvent) {
	if !f.IsConnected() {
		return
	}
	msg, err := protocol.NewMessage(protocol.TypeKey, protocol.KeyPayload{Key: ev.Key, Down: ev.Down})
	if err != nil {
		log.Printf("Forwarder: %v", err)
		return
	}
	select {
	case f.send <- msg:
	default:
		log.Printf("Forwarder: send queue full, dropped %s", ev.Key)
	}
}

func (f *Forwarder) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isConnected = v
}

// IsConnected returns true if the forwarder is connected to the remote daemon
func (f *Forwarder) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.isConnected
}

// Close stops the forwarder
func (f *Forwarder) Close() {
	f.closeOne.Do(func() { close(f.done) })
}
