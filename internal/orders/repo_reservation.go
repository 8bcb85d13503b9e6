package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/rushbasket/internal/stock"
)

type ReservationRepo struct{ DB *pgxpool.Pool }

// AlreadyReserved reports whether every item of the order is RESERVED (idempotency short-circuit).
func (r *ReservationRepo) AlreadyReserved(ctx context.Context, orderID string, itemCount int) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE order_id = $1 AND status = 'RESERVED'`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return itemCount > 0 && n == itemCount, nil
}

// ReserveAll locks each product row (FOR UPDATE), decrements stock and records the reservation.
// If any item is short nothing is committed. The returned changes are only valid once
// ok is true, i.e. after commit.
func (r *ReservationRepo) ReserveAll(ctx context.Context, orderID string, items []ItemQty) (ok bool, changes []stock.Change, details []StockRejectedDetail, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var rejects []StockRejectedDetail
	for _, it := range items {
		var p stock.Product
		var current int
		err := tx.QueryRow(ctx, `SELECT id, name, category, stock FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).
			Scan(&p.ID, &p.Name, &p.Category, &current)
		if errors.Is(err, pgx.ErrNoRows) {
			// product deleted after checkout: nothing to reserve
			rejects = append(rejects, StockRejectedDetail{ProductID: it.ProductID, Required: it.Qty})
			continue
		}
		if err != nil {
			return false, nil, nil, err
		}
		if current < it.Qty {
			rejects = append(rejects, StockRejectedDetail{
				ProductID: it.ProductID, Required: it.Qty, Available: current,
			})
			continue
		}

		var next int
		err = tx.QueryRow(ctx, `UPDATE products SET stock = stock - $2, updated_at=now() WHERE id=$1 RETURNING stock`,
			it.ProductID, it.Qty).Scan(&next)
		if err != nil {
			return false, nil, nil, err
		}
		changes = append(changes, stock.Change{Product: p, Previous: current, Current: next})

		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, product_id, qty, status)
			VALUES ($1,$2,$3,'RESERVED')
			ON CONFLICT (order_id, product_id) DO NOTHING
		`, orderID, it.ProductID, it.Qty); err != nil {
			return false, nil, nil, err
		}
	}

	if len(rejects) > 0 {
		return false, nil, rejects, nil // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, nil, err
	}
	return true, changes, nil, nil
}

// ReleaseAll returns reserved stock to the shelf, e.g. on cancellation.
func (r *ReservationRepo) ReleaseAll(ctx context.Context, orderID string) ([]stock.Change, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT product_id, qty FROM reservations WHERE order_id=$1 AND status='RESERVED'`, orderID)
	if err != nil {
		return nil, err
	}
	type rec struct {
		pid string
		qty int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty); err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	changes := make([]stock.Change, 0, len(recs))
	for _, x := range recs {
		var c stock.Change
		err := tx.QueryRow(ctx, `
			UPDATE products SET stock = stock + $2, updated_at=now() WHERE id=$1
			RETURNING id, name, category, stock`, x.pid, x.qty).
			Scan(&c.Product.ID, &c.Product.Name, &c.Product.Category, &c.Current)
		if err != nil {
			return nil, err
		}
		c.Previous = c.Current - x.qty
		changes = append(changes, c)
	}
	if _, err := tx.Exec(ctx, `UPDATE reservations SET status='RELEASED' WHERE order_id=$1 AND status='RESERVED'`, orderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return changes, nil
}
