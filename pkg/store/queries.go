package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"botfarm-core/internal/bots"
)

// GetBots returns one named bot collection in its stored order.
func (s *Store) GetBots(ctx context.Context, typ bots.Type) ([]bots.Bot, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT data FROM bots WHERE bot_type = ? ORDER BY ordinal
	`, string(typ))
	if err != nil {
		return nil, fmt.Errorf("query bots: %w", err)
	}
	defer rows.Close()

	var out []bots.Bot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		var b bots.Bot
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, fmt.Errorf("decode bot record: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveBots replaces one named bot collection atomically, preserving the
// slice order so monitor loops see a stable evaluation order.
func (s *Store) SaveBots(ctx context.Context, typ bots.Type, list []bots.Bot) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save bots: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bots WHERE bot_type = ?`, string(typ)); err != nil {
		return fmt.Errorf("clear bots: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bots (id, bot_type, ordinal, data, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, b := range list {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode bot %s: %w", b.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, b.ID, string(typ), i, string(data)); err != nil {
			return fmt.Errorf("insert bot %s: %w", b.ID, err)
		}
	}
	return tx.Commit()
}

// CreateOrder appends a normalized order record.
func (s *Store) CreateOrder(ctx context.Context, o Order) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO orders (id, bot_id, symbol, side, order_type, qty, price,
			leverage, take_profit, stop_loss, market_type, status, mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.BotID, o.Symbol, o.Side, o.OrderType, o.Qty, o.Price,
		o.Leverage, o.TakeProfit, o.StopLoss, o.MarketType, o.Status, o.Mode, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrders returns the most recent orders, newest first.
func (s *Store) GetOrders(ctx context.Context, limit int) ([]Order, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, COALESCE(bot_id, ''), symbol, side, order_type, qty, price,
		       leverage, take_profit, stop_loss, market_type, status, mode, created_at
		FROM orders ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BotID, &o.Symbol, &o.Side, &o.OrderType, &o.Qty, &o.Price,
			&o.Leverage, &o.TakeProfit, &o.StopLoss, &o.MarketType, &o.Status, &o.Mode, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CreateActiveOrder tracks an open position/order for exclusivity checks.
func (s *Store) CreateActiveOrder(ctx context.Context, o Order) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO active_orders (id, bot_id, symbol, side, qty, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.BotID, o.Symbol, o.Side, o.Qty, o.Price, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert active order: %w", err)
	}
	return nil
}

// GetActiveOrders lists currently open orders.
func (s *Store) GetActiveOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, COALESCE(bot_id, ''), symbol, side, qty, price, created_at
		FROM active_orders ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query active orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BotID, &o.Symbol, &o.Side, &o.Qty, &o.Price, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan active order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteActiveOrder removes an open order once it is closed and reports
// which bot owned it so the caller can release its exclusivity slot.
func (s *Store) DeleteActiveOrder(ctx context.Context, id string) (string, error) {
	var botID string
	err := s.DB.QueryRowContext(ctx, `
		SELECT COALESCE(bot_id, '') FROM active_orders WHERE id = ?
	`, id).Scan(&botID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup active order: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM active_orders WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("delete active order: %w", err)
	}
	return botID, nil
}

// AppendTrade records one trade history row; the collection is append-only.
func (s *Store) AppendTrade(ctx context.Context, t Trade) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO trades (id, order_id, bot_id, symbol, side, qty, price, fee, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.OrderID, t.BotID, t.Symbol, t.Side, t.Qty, t.Price, t.Fee, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetTrades returns recent trades, newest first.
func (s *Store) GetTrades(ctx context.Context, limit int) ([]Trade, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, order_id, COALESCE(bot_id, ''), symbol, side, qty, price, fee, created_at
		FROM trades ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.OrderID, &t.BotID, &t.Symbol, &t.Side, &t.Qty, &t.Price, &t.Fee, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
