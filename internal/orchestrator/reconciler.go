package orchestrator

import (
	"log/slog"
	"sort"

	"reversal-traderv1/internal/agent"
	"reversal-traderv1/internal/model"
)

// reconcileOrders merges the exchange's current order list into agent
// state. Only the newest order per symbol is kept. A buy order implies
// capital at risk, so an agent is created for it if none exists — this
// is what rebuilds the agent population after a restart. A sell order
// is only propagated to an existing agent; it never creates one.
func (o *Orchestrator) reconcileOrders(orders []model.Order) {
	for _, ord := range latestPerSymbol(orders) {
		var ag *agent.Agent
		switch ord.Side {
		case model.SideBuy:
			ag = o.ensureAgent(ord.Symbol)
		case model.SideSell:
			o.mu.RLock()
			ag = o.agents[ord.Symbol]
			o.mu.RUnlock()
			if ag == nil {
				// Benign race with exchange state, not a fault.
				o.log.Debug("sell order for unknown symbol ignored",
					slog.String("symbol", ord.Symbol))
				continue
			}
		default:
			continue
		}

		ag.SetOrder(ord)
		if !ag.Running() {
			ag.Start()
			o.log.Info("agent started from order feed",
				slog.String("symbol", ord.Symbol),
				slog.String("side", string(ord.Side)))
		}
	}
}

// latestPerSymbol reduces an order list to the most recent order per
// symbol. The input is sorted newest-first (stable, so the exchange's
// own ordering breaks creation-time ties) and the first occurrence wins.
func latestPerSymbol(orders []model.Order) []model.Order {
	sorted := make([]model.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, ord := range sorted {
		if seen[ord.Symbol] {
			continue
		}
		seen[ord.Symbol] = true
		out = append(out, ord)
	}
	return out
}
