// Package metrics exposes Prometheus metrics and a health endpoint for
// the trading engine.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	TicksTotal    prometheus.Counter
	TickDur       prometheus.Histogram
	UniverseSize  prometheus.Gauge
	AgentsRunning prometheus.Gauge

	SignalsTotal *prometheus.CounterVec // labels: signal
	OrdersPlaced *prometheus.CounterVec // labels: side

	StatsRefreshed prometheus.Counter
	StatsErrors    prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_ticks_total",
			Help: "Total orchestrator ticks executed",
		}),
		TickDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_tick_duration_seconds",
			Help:    "Wall time of one orchestrator tick",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		UniverseSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_universe_size",
			Help: "Symbols currently in the statistics cache",
		}),
		AgentsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_agents_running",
			Help: "Agents currently running",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Detector verdicts by signal",
		}, []string{"signal"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_placed_total",
			Help: "Market orders placed by side",
		}, []string{"side"}),
		StatsRefreshed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_stats_refreshed_total",
			Help: "24h statistics entries refreshed",
		}),
		StatsErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_stats_errors_total",
			Help: "24h statistics fetch failures",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.TickDur,
		m.UniverseSize,
		m.AgentsRunning,
		m.SignalsTotal,
		m.OrdersPlaced,
		m.StatsRefreshed,
		m.StatsErrors,
	)

	return m
}

// HealthStatus represents the process health.
type HealthStatus struct {
	mu sync.RWMutex

	ExchangeOK     bool
	RedisConnected bool
	JournalOK      bool
	LastTickTime   time.Time
	StartedAt      time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetExchangeOK(v bool) {
	h.mu.Lock()
	h.ExchangeOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetJournalOK(v bool) {
	h.mu.Lock()
	h.JournalOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.ExchangeOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if !h.RedisConnected || !h.JournalOK {
		overallStatus = "degraded"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string `json:"status"`
		Uptime         string `json:"uptime"`
		ExchangeOK     bool   `json:"exchange_ok"`
		RedisConnected bool   `json:"redis_connected"`
		JournalOK      bool   `json:"journal_ok"`
		LastTickTime   string `json:"last_tick_time"`
		TickAge        string `json:"tick_age"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		ExchangeOK:     h.ExchangeOK,
		RedisConnected: h.RedisConnected,
		JournalOK:      h.JournalOK,
		LastTickTime:   h.LastTickTime.Format(time.RFC3339),
		TickAge:        tickAge,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
