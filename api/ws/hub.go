// Package ws serves the market-data feed over websockets. The hub is
// an output-router tap: every broadcast event is encoded once as JSON
// and fanned out to subscribers, dropping on slow ones.
package ws

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"matchd/protocol"
)

const (
	clientBuffer = 256
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// feedEvent is the JSON shape on the feed.
type feedEvent struct {
	Type       string `json:"type"`
	Seq        uint64 `json:"seq"`
	Symbol     string `json:"symbol,omitempty"`
	Side       string `json:"side,omitempty"`
	Price      uint32 `json:"price,omitempty"`
	Quantity   uint32 `json:"quantity,omitempty"`
	UserID     uint32 `json:"userId,omitempty"`
	OrderID    uint32 `json:"orderId,omitempty"`
	BuyUser    uint32 `json:"buyUser,omitempty"`
	BuyOrder   uint32 `json:"buyOrder,omitempty"`
	SellUser   uint32 `json:"sellUser,omitempty"`
	SellOrder  uint32 `json:"sellOrder,omitempty"`
	Eliminated bool   `json:"eliminated,omitempty"`
}

type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	subscribed atomic.Uint64
	events     atomic.Uint64
	dropped    atomic.Uint64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades a subscriber connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.subscribed.Add(1)
	log.Printf("[ws] subscriber connected from %s", conn.RemoteAddr())

	go h.writePump(c)
	go h.readPump(c)
}

// Publish implements the output-router tap.
func (h *Hub) Publish(m *protocol.OutputMessage, seq uint64) {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	data, err := sonnet.Marshal(toEvent(m, seq))
	if err != nil {
		return
	}
	h.events.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer h.drop(c)

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the feed is one-way, but reading
// keeps ping/pong control handling alive.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Shutdown closes every subscriber.
func (h *Hub) Shutdown(context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Events() uint64  { return h.events.Load() }
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func toEvent(m *protocol.OutputMessage, seq uint64) feedEvent {
	ev := feedEvent{Seq: seq, Symbol: m.Symbol.String()}
	switch m.Kind {
	case protocol.KindAck:
		ev.Type = "ack"
		ev.UserID = m.UserID
		ev.OrderID = m.UserOrderID
	case protocol.KindCancelAck:
		ev.Type = "cancelAck"
		ev.UserID = m.UserID
		ev.OrderID = m.UserOrderID
	case protocol.KindTrade:
		ev.Type = "trade"
		ev.Price = m.Price
		ev.Quantity = m.Quantity
		ev.BuyUser = m.BuyUserID
		ev.BuyOrder = m.BuyOrderID
		ev.SellUser = m.SellUserID
		ev.SellOrder = m.SellOrderID
	case protocol.KindTopOfBook:
		ev.Type = "topOfBook"
		if m.Side == protocol.SideBuy {
			ev.Side = "B"
		} else {
			ev.Side = "S"
		}
		ev.Eliminated = m.Eliminated
		if !m.Eliminated {
			ev.Price = m.Price
			ev.Quantity = m.Quantity
		}
	}
	return ev
}
