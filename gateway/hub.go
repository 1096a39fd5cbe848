package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/3l500nfy/Ghostbid/core"
)

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 32
	eventBusBuffer = 256
)

// eventMessage is the wire shape pushed to websocket subscribers for every
// engine event.
type eventMessage struct {
	Type      string    `json:"type"`
	AuctionID uint64    `json:"auction_id"`
	EmittedAt time.Time `json:"emitted_at"`
	Seller    string    `json:"seller,omitempty"`
	Bidder    string    `json:"bidder,omitempty"`
	BidIndex  *int      `json:"bid_index,omitempty"`
	Winner    string    `json:"winner,omitempty"`
}

func messageFor(ev core.Event) eventMessage {
	msg := eventMessage{
		AuctionID: ev.AuctionID(),
		EmittedAt: ev.EmittedAt(),
	}
	switch e := ev.(type) {
	case core.AuctionCreated:
		msg.Type = "auction_created"
		msg.Seller = string(e.Seller)
	case core.BidSubmitted:
		msg.Type = "bid_submitted"
		msg.Bidder = string(e.Bidder)
		idx := e.BidIndex
		msg.BidIndex = &idx
	case core.AuctionFinalized:
		msg.Type = "auction_finalized"
		msg.Winner = e.Winner.Hex()
	default:
		msg.Type = "unknown"
	}
	return msg
}

// Hub fans engine events out to websocket subscribers. One goroutine owns the
// client set; registration, removal and broadcast all funnel through it.
type Hub struct {
	events     <-chan core.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan eventMessage
}

// NewHub subscribes to the bus and returns an idle hub; call Run to start it.
func NewHub(bus *core.Bus, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		events:     bus.Subscribe(eventBusBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run owns the client set until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	defer func() {
		close(h.done)
		for c := range clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			// Ack so subscribers know the stream is live before any
			// lifecycle event reaches them.
			c.send <- eventMessage{Type: "connected"}
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
			}
		case ev, ok := <-h.events:
			if !ok {
				return
			}
			msg := messageFor(ev)
			for c := range clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(clients, c)
					close(c.send)
				}
			}
		}
	}
}

// ServeWS upgrades the request and streams events until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan eventMessage, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop(h)
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
}

// readLoop drains and discards client frames so pings and close frames are
// processed, then deregisters on disconnect.
func (c *client) readLoop(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
