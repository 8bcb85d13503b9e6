package orders

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/rushbasket/internal/postgres"
	"github.com/ariefcatur/rushbasket/internal/stock"
)

// testDB connects to the database named by POSTGRES_TEST_DSN and applies the schema.
// Rows use fresh uuids so runs never collide.
func testDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn, 16)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, postgres.Migrate(ctx, db))
	return db
}

func seedProduct(t *testing.T, db *pgxpool.Pool, name, price string, level int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(), `
		INSERT INTO products(id, sku, name, category, price, stock)
		VALUES ($1, $2, $3, 'Test', $4, $5)`,
		id, "sku-"+id, name, d(price), level)
	require.NoError(t, err)
	return id
}

func stockOf(t *testing.T, db *pgxpool.Pool, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, productID).Scan(&n))
	return n
}

func checkout(items ...ItemInput) CheckoutInput {
	return CheckoutInput{
		ExternalID:    "cart-" + uuid.NewString(),
		UserID:        "u-test",
		PaymentMethod: PaymentCOD,
		Items:         items,
	}
}

var testShipping = ShippingPolicy{FlatFee: d("50"), FreeFrom: d("500")}

func TestRepo_CreateOrderPersistsTotals(t *testing.T) {
	db := testDB(t)
	repo := &Repo{DB: db, Shipping: testShipping}
	rice := seedProduct(t, db, "Rice", "100", 10)
	ctx := context.Background()

	o, existed, err := repo.CreateOrder(ctx, checkout(ItemInput{ProductID: rice, Qty: 2}))
	require.NoError(t, err)
	assert.False(t, existed)

	got, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assertMoney(t, "200", got.Subtotal)
	assertMoney(t, "10.00", got.Tax)
	assertMoney(t, "50", got.Shipping)
	assertMoney(t, "260.00", got.Total)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, PaymentUnpaid, got.PaymentStatus)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Rice", got.Items[0].Name)
	assertMoney(t, "100", got.Items[0].UnitPrice)

	status, payStatus, err := repo.GetOrderStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)
	assert.Equal(t, PaymentUnpaid, payStatus)
}

func TestRepo_CreateOrderRejectsUnknownProduct(t *testing.T) {
	db := testDB(t)
	repo := &Repo{DB: db, Shipping: testShipping}

	_, _, err := repo.CreateOrder(context.Background(), checkout(ItemInput{ProductID: uuid.NewString(), Qty: 1}))
	assert.ErrorIs(t, err, ErrInvalidLineItem)
}

func TestRepo_CreateOrderConcurrentSameExternalID(t *testing.T) {
	db := testDB(t)
	repo := &Repo{DB: db, Shipping: testShipping}
	milk := seedProduct(t, db, "Milk", "2.49", 50)
	in := checkout(ItemInput{ProductID: milk, Qty: 1})

	const callers = 8
	type result struct {
		id      string
		existed bool
		err     error
	}
	results := make([]result, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, existed, err := repo.CreateOrder(context.Background(), in)
			results[i] = result{o.ID, existed, err}
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		require.NoError(t, r.err)
		assert.Equal(t, results[0].id, r.id)
		if !r.existed {
			created++
		}
	}
	assert.Equal(t, 1, created)

	var rows int
	require.NoError(t, db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM orders WHERE external_id=$1`, in.ExternalID).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestRepo_DuplicateLinesReserveAndReleaseSymmetrically(t *testing.T) {
	db := testDB(t)
	repo := &Repo{DB: db, Shipping: testShipping}
	reservations := &ReservationRepo{DB: db}
	eggs := seedProduct(t, db, "Eggs", "3.00", 10)
	ctx := context.Background()

	o, _, err := repo.CreateOrder(ctx, checkout(
		ItemInput{ProductID: eggs, Qty: 2},
		ItemInput{ProductID: eggs, Qty: 3},
	))
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assertMoney(t, "15", o.Subtotal)

	items := ItemQtys(o.Items)
	ok, changes, details, err := reservations.ReserveAll(ctx, o.ID, items)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, details)
	require.Len(t, changes, 1)
	assert.Equal(t, 10, changes[0].Previous)
	assert.Equal(t, 5, changes[0].Current)
	assert.Equal(t, 5, stockOf(t, db, eggs))

	done, err := reservations.AlreadyReserved(ctx, o.ID, len(items))
	require.NoError(t, err)
	assert.True(t, done)

	released, err := reservations.ReleaseAll(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, 5, released[0].Previous)
	assert.Equal(t, 10, released[0].Current)
	assert.Equal(t, "Eggs", released[0].Product.Name)
	assert.Equal(t, 10, stockOf(t, db, eggs))

	again, err := reservations.ReleaseAll(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, 10, stockOf(t, db, eggs))
}

func TestRepo_ReserveAllIsAllOrNothing(t *testing.T) {
	db := testDB(t)
	repo := &Repo{DB: db, Shipping: testShipping}
	reservations := &ReservationRepo{DB: db}
	tea := seedProduct(t, db, "Tea", "12.10", 5)
	salt := seedProduct(t, db, "Salt", "0.50", 1)
	ctx := context.Background()

	o, _, err := repo.CreateOrder(ctx, checkout(
		ItemInput{ProductID: tea, Qty: 2},
		ItemInput{ProductID: salt, Qty: 3},
	))
	require.NoError(t, err)

	ok, changes, details, err := reservations.ReserveAll(ctx, o.ID, ItemQtys(o.Items))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, changes)
	assert.Equal(t, []StockRejectedDetail{{ProductID: salt, Required: 3, Available: 1}}, details)
	assert.Equal(t, 5, stockOf(t, db, tea))
	assert.Equal(t, 1, stockOf(t, db, salt))
}

func TestRepo_ReplaceItemsRecomputesBeforeUpdate(t *testing.T) {
	db := testDB(t)
	repo := &Repo{DB: db, Shipping: testShipping}
	rice := seedProduct(t, db, "Rice", "100", 10)
	oil := seedProduct(t, db, "Oil", "0.30", 10)
	ctx := context.Background()

	o, _, err := repo.CreateOrder(ctx, checkout(ItemInput{ProductID: rice, Qty: 1}))
	require.NoError(t, err)

	free := d("0")
	replaced, err := repo.ReplaceItems(ctx, o.ID, []ItemInput{{ProductID: oil, Qty: 1}}, &free)
	require.NoError(t, err)
	assertMoney(t, "0.32", replaced.Total)

	got, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assertMoney(t, "0.30", got.Subtotal)
	assertMoney(t, "0.02", got.Tax)
	assertMoney(t, "0", got.Shipping)
	assertMoney(t, "0.32", got.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, oil, got.Items[0].ProductID)

	subCent := d("4.995")
	_, err = repo.ReplaceItems(ctx, o.ID, []ItemInput{{ProductID: rice, Qty: 3}}, &subCent)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	unchanged, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assertMoney(t, "0.32", unchanged.Total)
	assert.Equal(t, oil, unchanged.Items[0].ProductID)
}

func TestRepo_UpdateStatusReturnsPrevious(t *testing.T) {
	db := testDB(t)
	repo := &Repo{DB: db, Shipping: testShipping}
	rice := seedProduct(t, db, "Rice", "100", 10)
	ctx := context.Background()

	o, _, err := repo.CreateOrder(ctx, checkout(ItemInput{ProductID: rice, Qty: 1}))
	require.NoError(t, err)

	from, err := repo.UpdateStatus(ctx, o.ID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, from)

	from, err = repo.UpdateStatus(ctx, o.ID, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, from)

	_, err = repo.UpdateStatus(ctx, uuid.NewString(), StatusShipped)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProductRepo_StockNeverBelowZero(t *testing.T) {
	db := testDB(t)
	products := &ProductRepo{DB: db}
	bread := seedProduct(t, db, "Bread", "1.99", 4)
	ctx := context.Background()

	_, err := products.AdjustStock(ctx, bread, -5)
	assert.ErrorIs(t, err, stock.ErrInvalidStockValue)
	assert.Equal(t, 4, stockOf(t, db, bread))

	_, err = products.SetStock(ctx, bread, -1)
	assert.ErrorIs(t, err, stock.ErrInvalidStockValue)
	assert.Equal(t, 4, stockOf(t, db, bread))

	c, err := products.AdjustStock(ctx, bread, -4)
	require.NoError(t, err)
	assert.Equal(t, stock.Change{
		Product:  stock.Product{ID: bread, Name: "Bread", Category: "Test"},
		Previous: 4,
		Current:  0,
	}, c)

	c, err = products.SetStock(ctx, bread, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Previous)
	assert.Equal(t, 20, c.Current)

	_, err = products.AdjustStock(ctx, uuid.NewString(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
