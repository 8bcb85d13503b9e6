package notify

import (
	"fmt"

	"github.com/ariefcatur/rushbasket/internal/stock"
)

// Format renders the SMS body for an alert.
func Format(a stock.Alert) string {
	category := a.Category
	if category == "" {
		category = "uncategorised"
	}
	switch a.Kind {
	case stock.KindOutOfStock:
		return fmt.Sprintf("RushBasket: OUT OF STOCK - %s (%s) is at %d units. Restock needed.",
			a.ProductName, category, a.StockLevel)
	case stock.KindLowStock:
		return fmt.Sprintf("RushBasket: LOW STOCK - %s (%s) has %d units left (threshold %d).",
			a.ProductName, category, a.StockLevel, a.Threshold)
	}
	return fmt.Sprintf("RushBasket: stock update - %s (%s) is at %d units.", a.ProductName, category, a.StockLevel)
}
