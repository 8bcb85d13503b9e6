package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/rushbasket/internal/stock"
)

type ProductRepo struct{ DB *pgxpool.Pool }

func (r *ProductRepo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, category, image_ref, stock, price, created_at, updated_at
	                              FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.ImageRef, &p.Stock, &p.Price, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdjustStock adds delta (negative to remove) to a product's stock. Stock never goes below zero.
func (r *ProductRepo) AdjustStock(ctx context.Context, productID string, delta int) (stock.Change, error) {
	return r.mutateStock(ctx, productID, func(cur int) int { return cur + delta })
}

// SetStock overwrites the stock level, e.g. after a physical count.
func (r *ProductRepo) SetStock(ctx context.Context, productID string, level int) (stock.Change, error) {
	return r.mutateStock(ctx, productID, func(int) int { return level })
}

func (r *ProductRepo) mutateStock(ctx context.Context, productID string, next func(int) int) (stock.Change, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return stock.Change{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var c stock.Change
	err = tx.QueryRow(ctx, `SELECT id, name, category, stock FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&c.Product.ID, &c.Product.Name, &c.Product.Category, &c.Previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return stock.Change{}, ErrNotFound
	}
	if err != nil {
		return stock.Change{}, err
	}

	c.Current = next(c.Previous)
	if c.Current < 0 {
		return stock.Change{}, fmt.Errorf("%w: product %s would drop to %d", stock.ErrInvalidStockValue, productID, c.Current)
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, productID, c.Current); err != nil {
		return stock.Change{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return stock.Change{}, err
	}
	return c, nil
}
