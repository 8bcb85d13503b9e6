package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber builds the customer-facing id, e.g. RB-20261018-3F9A1C.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "RB-" + now.UTC().Format("20060102") + "-" + suffix
}
