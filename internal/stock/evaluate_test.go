package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var apples = Product{ID: "p-1", Name: "Apples", Category: "Fruits"}

func TestEvaluate(t *testing.T) {
	th := Thresholds{Low: 5, Out: 0}
	tests := []struct {
		name     string
		previous int
		current  int
		want     Kind
	}{
		{"crosses into low band", 12, 4, KindLowStock},
		{"stays in low band", 4, 4, KindNoOp},
		{"out takes priority over low", 3, 0, KindOutOfStock},
		{"upward move never fires", 0, 10, KindNoOp},
		{"in stock to out skips low", 20, 0, KindOutOfStock},
		{"lands exactly on low threshold", 6, 5, KindLowStock},
		{"moves within in-stock band", 30, 6, KindNoOp},
		{"low to lower low", 5, 1, KindNoOp},
		{"out stays out", 0, 0, KindNoOp},
		{"restock from out into low", 0, 3, KindNoOp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Evaluate(apples, tt.previous, tt.current, th)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Kind)
			assert.Equal(t, tt.want != KindNoOp, d.Fire())
		})
	}
}

func TestEvaluate_AlertPayload(t *testing.T) {
	d, err := Evaluate(apples, 12, 4, DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, Alert{
		Kind:        KindLowStock,
		ProductID:   "p-1",
		ProductName: "Apples",
		Category:    "Fruits",
		StockLevel:  4,
		Threshold:   5,
	}, d.Alert)
}

func TestEvaluate_OutThresholdBoundaryIsOut(t *testing.T) {
	th := Thresholds{Low: 10, Out: 2}
	d, err := Evaluate(apples, 11, 2, th)
	require.NoError(t, err)
	assert.Equal(t, KindOutOfStock, d.Kind)
	assert.Equal(t, BandOut, BandOf(2, th))

	d, err = Evaluate(apples, 11, 3, th)
	require.NoError(t, err)
	assert.Equal(t, KindLowStock, d.Kind)
}

func TestEvaluate_RepeatedEvaluationDoesNotRefire(t *testing.T) {
	th := DefaultThresholds()
	first, err := Evaluate(apples, 8, 3, th)
	require.NoError(t, err)
	require.Equal(t, KindLowStock, first.Kind)

	for i := 0; i < 3; i++ {
		again, err := Evaluate(apples, 3, 3, th)
		require.NoError(t, err)
		assert.Equal(t, KindNoOp, again.Kind)
	}
}

func TestEvaluate_NegativeStock(t *testing.T) {
	_, err := Evaluate(apples, -1, 3, DefaultThresholds())
	assert.ErrorIs(t, err, ErrInvalidStockValue)

	_, err = Evaluate(apples, 3, -2, DefaultThresholds())
	assert.ErrorIs(t, err, ErrInvalidStockValue)
}

func TestBandOf(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, BandInStock, BandOf(6, th))
	assert.Equal(t, BandLow, BandOf(5, th))
	assert.Equal(t, BandLow, BandOf(1, th))
	assert.Equal(t, BandOut, BandOf(0, th))
	assert.Equal(t, "LOW", BandLow.String())
}
