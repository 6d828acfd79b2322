// Package journal persists placed orders to SQLite for analysis and
// audit. The journal is append-only and is never read back into agent
// state — the exchange order feed remains the only source of truth.
package journal

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reversal-traderv1/internal/agent"
)

// Journal records order placements in a SQLite database.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// New opens (or creates) a SQLite journal database.
func New(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		client_oid  TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		side        TEXT NOT NULL,
		funds       TEXT NOT NULL,
		size        TEXT NOT NULL,
		placed_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened order journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordOrder persists one placed order.
func (j *Journal) RecordOrder(ev agent.OrderEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO orders (order_id, client_oid, symbol, side, funds, size, placed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.OrderID,
		ev.ClientOid,
		ev.Symbol,
		string(ev.Side),
		ev.Funds.String(),
		ev.Size.String(),
		ev.PlacedAt.Format(time.RFC3339),
	)
	return err
}

// Record is a row from the orders table.
type Record struct {
	ID        int64  `json:"id"`
	OrderID   string `json:"order_id"`
	ClientOid string `json:"client_oid"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Funds     string `json:"funds"`
	Size      string `json:"size"`
	PlacedAt  string `json:"placed_at"`
}

// RecentOrders returns the last N recorded orders, newest first.
func (j *Journal) RecentOrders(limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, client_oid, symbol, side, funds, size, placed_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.OrderID, &r.ClientOid, &r.Symbol,
			&r.Side, &r.Funds, &r.Size, &r.PlacedAt); err != nil {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
