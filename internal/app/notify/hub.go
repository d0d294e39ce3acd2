package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/referralhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// client is one websocket connection of a recipient.
type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	email string
}

type envelope struct {
	email   string
	payload []byte
}

type countReq struct {
	email string
	reply chan int
}

// Hub fans out new notifications to every open websocket of their
// recipient. Run owns the registration map; everything else talks to it
// through channels.
type Hub struct {
	register   chan *client
	unregister chan *client
	publish    chan envelope
	count      chan countReq
	done       chan struct{}
	stopOnce   sync.Once

	clients map[string]map[*client]struct{}
	log     *zap.Logger
}

// NewHub creates a hub. Call Run in its own goroutine.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		publish:    make(chan envelope, 64),
		count:      make(chan countReq),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*client]struct{}),
		log:        logger,
	}
}

// Run processes registrations and deliveries until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			if h.clients[c.email] == nil {
				h.clients[c.email] = make(map[*client]struct{})
			}
			h.clients[c.email][c] = struct{}{}
			h.log.Debug("websocket registered", zap.String("email", c.email))

		case c := <-h.unregister:
			h.remove(c)

		case env := <-h.publish:
			for c := range h.clients[env.email] {
				select {
				case c.send <- env.payload:
				default:
					h.log.Warn("dropping slow websocket client", zap.String("email", c.email))
					h.remove(c)
				}
			}

		case req := <-h.count:
			req.reply <- len(h.clients[req.email])

		case <-h.done:
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*client]struct{}{}
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	set, ok := h.clients[c.email]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.email)
	}
}

// Stop ends Run and closes every connection. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish queues n for every connection of n.RecipientEmail. It never
// blocks the caller; when the queue is full the push is skipped since the
// notification is already stored.
func (h *Hub) Publish(n models.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		h.log.Error("encode notification", zap.Error(err))
		return
	}
	select {
	case h.publish <- envelope{email: n.RecipientEmail, payload: payload}:
	case <-h.done:
	default:
		h.log.Warn("push queue full", zap.String("email", n.RecipientEmail))
	}
}

// Connections returns the number of open connections for email.
func (h *Hub) Connections(email string) int {
	req := countReq{email: email, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and streams email's notifications on it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, email string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), email: email}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only handles control frames; clients do not send data.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket closed", zap.String("email", c.email), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
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
