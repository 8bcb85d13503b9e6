package stock

import "fmt"

type Kind string

const (
	KindNoOp       Kind = "NOOP"
	KindLowStock   Kind = "LOW_STOCK"
	KindOutOfStock Kind = "OUT_OF_STOCK"
)

type Product struct {
	ID       string `json:"product_id"`
	Name     string `json:"product_name"`
	Category string `json:"category"`
}

// Change is one committed stock mutation of a single product.
type Change struct {
	Product  Product
	Previous int
	Current  int
}

type Alert struct {
	Kind        Kind   `json:"kind"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	StockLevel  int    `json:"stock_level"`
	Threshold   int    `json:"threshold"`
}

type Decision struct {
	Kind  Kind
	Alert Alert
}

func (d Decision) Fire() bool { return d.Kind != KindNoOp }

// Evaluate is edge-triggered: it fires only when stock enters the low band from
// in-stock, or enters the out band from any higher band. Upward moves and moves
// inside one band return KindNoOp.
func Evaluate(p Product, previous, current int, th Thresholds) (Decision, error) {
	if previous < 0 || current < 0 {
		return Decision{Kind: KindNoOp}, fmt.Errorf("%w: previous=%d current=%d", ErrInvalidStockValue, previous, current)
	}

	kind := KindNoOp
	threshold := 0
	switch {
	case current <= th.Out && previous > th.Out:
		kind, threshold = KindOutOfStock, th.Out
	case current > th.Out && current <= th.Low && previous > th.Low:
		kind, threshold = KindLowStock, th.Low
	}
	if kind == KindNoOp {
		return Decision{Kind: kind}, nil
	}
	return Decision{
		Kind: kind,
		Alert: Alert{
			Kind:        kind,
			ProductID:   p.ID,
			ProductName: p.Name,
			Category:    p.Category,
			StockLevel:  current,
			Threshold:   threshold,
		},
	}, nil
}
