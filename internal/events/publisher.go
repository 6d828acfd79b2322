// Package events publishes trading events to Redis Pub/Sub so external
// consumers (the gateway WebSocket hub, dashboards) can observe the
// engine without coupling to it. Publishing is fire-and-forget: a
// delivery failure is logged and never affects trading.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"reversal-traderv1/internal/agent"
	"reversal-traderv1/internal/detector"
)

const (
	channelSignalPrefix = "pub:signal:"
	channelOrderPrefix  = "pub:order:"
	channelUniverse     = "pub:universe"
)

// Envelope wraps every published payload.
type Envelope struct {
	Type    string          `json:"type"`
	Symbol  string          `json:"symbol,omitempty"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// PublisherConfig configures the Redis connection.
type PublisherConfig struct {
	Addr     string
	Password string
	DB       int
}

// Publisher publishes engine events to Redis Pub/Sub.
type Publisher struct {
	client *goredis.Client
}

// Client returns the underlying Redis client (shared with the gateway
// hub subscription).
func (p *Publisher) Client() *goredis.Client { return p.client }

// NewPublisher connects to Redis and pings the server.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[events] connected to redis at %s", cfg.Addr)
	return &Publisher{client: client}, nil
}

// PublishSignal publishes a non-NONE detector verdict.
func (p *Publisher) PublishSignal(ctx context.Context, symbol string, sig detector.Signal) {
	if sig == detector.SignalNone {
		return
	}
	payload, _ := json.Marshal(map[string]string{"signal": string(sig)})
	p.publish(ctx, channelSignalPrefix+symbol, Envelope{
		Type:    "signal",
		Symbol:  symbol,
		TS:      time.Now(),
		Payload: payload,
	})
}

// PublishOrder publishes a placed order event.
func (p *Publisher) PublishOrder(ctx context.Context, ev agent.OrderEvent) {
	payload, _ := json.Marshal(ev)
	p.publish(ctx, channelOrderPrefix+ev.Symbol, Envelope{
		Type:    "order",
		Symbol:  ev.Symbol,
		TS:      time.Now(),
		Payload: payload,
	})
}

// PublishUniverse publishes the universe size after a refresh cycle.
func (p *Publisher) PublishUniverse(ctx context.Context, size int) {
	payload, _ := json.Marshal(map[string]int{"size": size})
	p.publish(ctx, channelUniverse, Envelope{
		Type:    "universe",
		TS:      time.Now(),
		Payload: payload,
	})
}

func (p *Publisher) publish(ctx context.Context, channel string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[events] publish %s failed: %v", channel, err)
	}
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
