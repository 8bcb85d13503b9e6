package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CheckoutInput struct {
	ExternalID    string
	UserID        string
	PaymentMethod PaymentMethod
	Items         []ItemInput
}

type Repo struct {
	DB       *pgxpool.Pool
	Shipping ShippingPolicy
}

const orderColumns = `id, order_number, external_id, user_id, status, payment_status, payment_method,
	subtotal, tax, shipping, total, created_at, updated_at`

// CreateOrder is idempotent via external_id: an existing order is returned with existed=true,
// including when a concurrent call inserts it first. Prices and names are read from
// products, never trusted from the client. Lines for the same product are merged.
func (r *Repo) CreateOrder(ctx context.Context, in CheckoutInput) (o Order, existed bool, err error) {
	if existing, err := r.getByExternalID(ctx, in.ExternalID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Order{}, false, err
	}

	payStatus, err := InitialPaymentStatus(in.PaymentMethod)
	if err != nil {
		return Order{}, false, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	items, err := priceItems(ctx, tx, in.Items)
	if err != nil {
		return Order{}, false, err
	}

	now := time.Now().UTC()
	o = Order{
		ID:            uuid.NewString(),
		OrderNumber:   NewOrderNumber(now),
		ExternalID:    in.ExternalID,
		UserID:        in.UserID,
		Items:         items,
		Shipping:      r.Shipping.Quote(ItemsSubtotal(items)),
		Status:        InitialStatus,
		PaymentStatus: payStatus,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.RecomputeTotals(); err != nil {
		return Order{}, false, err
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (external_id) DO NOTHING`,
		o.ID, o.OrderNumber, o.ExternalID, o.UserID, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.Subtotal, o.Tax, o.Shipping, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return Order{}, false, err
	}
	if ct.RowsAffected() == 0 {
		// a concurrent checkout with the same external_id won
		_ = tx.Rollback(ctx)
		existing, err := r.getByExternalID(ctx, in.ExternalID)
		if err != nil {
			return Order{}, false, err
		}
		return existing, true, nil
	}
	if err := insertItems(ctx, tx, o.ID, o.Items); err != nil {
		return Order{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return o, false, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	o.Items, err = r.loadItems(ctx, o.ID)
	return o, err
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, PaymentStatus, error) {
	var s, ps string
	err := r.DB.QueryRow(ctx, `SELECT status, payment_status FROM orders WHERE id=$1`, orderID).Scan(&s, &ps)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return Status(s), PaymentStatus(ps), nil
}

// UpdateStatus assigns any valid status; no transition graph is enforced.
// It returns the status the order had before.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, to Status) (from Status, err error) {
	if !to.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var s string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, to); err != nil {
		return "", err
	}
	return Status(s), tx.Commit(ctx)
}

func (r *Repo) UpdatePaymentStatus(ctx context.Context, orderID string, ps PaymentStatus) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET payment_status=$2, updated_at=now() WHERE id=$1`, orderID, ps)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceItems swaps the line items of an order and re-establishes its totals
// before writing. A nil shipping re-quotes it from the policy.
func (r *Repo) ReplaceItems(ctx context.Context, orderID string, in []ItemInput, shipping *decimal.Decimal) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return Order{}, err
	}
	items, err := priceItems(ctx, tx, in)
	if err != nil {
		return Order{}, err
	}
	o.Items = items
	if shipping != nil {
		o.Shipping = *shipping
	} else {
		o.Shipping = r.Shipping.Quote(ItemsSubtotal(items))
	}
	if err := o.RecomputeTotals(); err != nil {
		return Order{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, orderID); err != nil {
		return Order{}, err
	}
	if err := insertItems(ctx, tx, orderID, items); err != nil {
		return Order{}, err
	}
	err = tx.QueryRow(ctx, `
		UPDATE orders SET subtotal=$2, tax=$3, shipping=$4, total=$5, updated_at=now()
		WHERE id=$1 RETURNING updated_at`,
		orderID, o.Subtotal, o.Tax, o.Shipping, o.Total,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	return o, tx.Commit(ctx)
}

func (r *Repo) getByExternalID(ctx context.Context, externalID string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, externalID))
	if err != nil {
		return Order{}, err
	}
	o.Items, err = r.loadItems(ctx, o.ID)
	return o, err
}

func (r *Repo) loadItems(ctx context.Context, orderID string) ([]LineItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, unit_price, qty, image_ref
		FROM order_items WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.ImageRef); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status, payStatus, payMethod string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.ExternalID, &o.UserID, &status, &payStatus, &payMethod,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payStatus)
	o.PaymentMethod = PaymentMethod(payMethod)
	return o, nil
}

// MergeItems folds lines for the same product into the first one, keeping order.
// Reservations are keyed by (order, product), so an order holds each product once.
func MergeItems(in []ItemInput) ([]ItemInput, error) {
	out := make([]ItemInput, 0, len(in))
	pos := make(map[string]int, len(in))
	for _, it := range in {
		if it.Qty < 1 {
			return nil, fmt.Errorf("%w: invalid qty %d for product %s", ErrInvalidLineItem, it.Qty, it.ProductID)
		}
		if i, ok := pos[it.ProductID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		pos[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// priceItems snapshots name, price and image of each product into line items.
func priceItems(ctx context.Context, tx pgx.Tx, raw []ItemInput) ([]LineItem, error) {
	in, err := MergeItems(raw)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(in))
	for _, it := range in {
		ids = append(ids, it.ProductID)
	}
	if len(ids) == 0 {
		return []LineItem{}, nil
	}

	rows, err := tx.Query(ctx, `SELECT id, name, price, image_ref FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	byID := map[string]LineItem{}
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ProductID, &li.Name, &li.UnitPrice, &li.ImageRef); err != nil {
			rows.Close()
			return nil, err
		}
		byID[li.ProductID] = li
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]LineItem, 0, len(in))
	for _, it := range in {
		li, ok := byID[it.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product not found: %s", ErrInvalidLineItem, it.ProductID)
		}
		li.Quantity = it.Qty
		out = append(out, li)
	}
	return out, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []LineItem) error {
	for i, it := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, name, unit_price, qty, image_ref)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			orderID, i, it.ProductID, it.Name, it.UnitPrice, it.Quantity, it.ImageRef,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
