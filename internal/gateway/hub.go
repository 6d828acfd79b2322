// Package gateway exposes the engine's control surface: a WebSocket
// event stream fed from Redis Pub/Sub plus a small REST API for
// introspection and the drain/pause switches. It owns no trading state;
// everything it serves is a snapshot read through the Core interface.
package gateway

import (
	"context"
	"log"
	"sync"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"reversal-traderv1/internal/agent"
	"reversal-traderv1/internal/model"
	"reversal-traderv1/internal/orchestrator"
)

// Core is the subset of the orchestrator the gateway serves.
type Core interface {
	Agents() []agent.Info
	AgentInfo(symbol string) (agent.Info, bool)
	Universe() []model.Stats
	UniverseEntry(symbol string) (model.Stats, bool)
	CandleDump(symbol string, n int) (orchestrator.Dump, bool)
	SetDrain(v bool)
	SetPause(v bool)
	Drained() bool
	Paused() bool
}

// eventPattern matches every channel the events publisher uses.
const eventPattern = "pub:*"

// Hub fans engine events from Redis Pub/Sub out to WebSocket clients.
type Hub struct {
	rdb *goredis.Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates a hub. rdb may be nil; the hub then only serves
// connection keep-alive and no events flow.
func NewHub(rdb *goredis.Client) *Hub {
	return &Hub{
		rdb:     rdb,
		clients: make(map[*Client]bool),
	}
}

// Run subscribes to the event channels and forwards messages to all
// connected clients. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		log.Println("[gateway] no redis client, ws event stream disabled")
		<-ctx.Done()
		return
	}

	pubsub := h.rdb.PSubscribe(ctx, eventPattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast([]byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// slow client, drop the message
		}
	}
}

// Register adds a freshly upgraded connection and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
