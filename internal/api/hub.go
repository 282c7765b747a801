/*
Package api
File: hub.go
Description:
    The WebSocket Hub pushes each resolved round's public log to the clients
    watching that game. Clients subscribe with GET /ws?game=<id>; anything
    they send is ignored.
*/

package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xtding233/techrace-backend/internal/engine"
)

// Message is the JSON envelope written to every socket.
type Message struct {
	Type    string `json:"type"` // "round_resolved"
	Game    string `json:"game"`
	Round   int    `json:"round"`
	Payload any    `json:"payload"`
}

// Client is one browser connection watching one game.
type Client struct {
	hub  *Hub
	game string
	conn *websocket.Conn
	send chan []byte // buffered outbound messages
}

type outbound struct {
	game string
	data []byte
}

// Hub maintains the active clients per game and fans messages out to them.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It blocks until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			if h.clients[c.game] == nil {
				h.clients[c.game] = make(map[*Client]bool)
			}
			h.clients[c.game][c] = true
			log.Printf("ws: client joined game %s", c.game)

		case c := <-h.unregister:
			h.drop(c)

		case m := <-h.broadcast:
			for c := range h.clients[m.game] {
				select {
				case c.send <- m.data:
				default:
					// slow client
					h.drop(c)
				}
			}

		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	set := h.clients[c.game]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.game)
	}
}

// Publish implements match.Notifier. It never blocks resolution: when the
// queue is full the message is dropped and logged.
func (h *Hub) Publish(gameID string, round int, entries []engine.LogEntry) {
	data, err := json.Marshal(Message{Type: "round_resolved", Game: gameID, Round: round, Payload: entries})
	if err != nil {
		log.Printf("ws: encode round %d of %s: %v", round, gameID, err)
		return
	}
	select {
	case h.broadcast <- outbound{game: gameID, data: data}:
	case <-h.done:
	default:
		log.Printf("ws: queue full, dropped round %d of %s", round, gameID)
	}
}

// upgrader allows any origin; the feed carries public entries only.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs upgrades the request and subscribes the connection to ?game=.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	game := r.URL.Query().Get("game")
	if game == "" {
		http.Error(w, "missing param game", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ws upgrade error:", err)
		return
	}
	c := &Client{hub: hub, game: game, conn: conn, send: make(chan []byte, 16)}
	select {
	case hub.register <- c:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// readPump drains the connection so control frames are processed, and
// unregisters the client when it goes away.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued messages until the hub closes c.send.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
