package orders

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// InitialStatus is the status every order is created with.
const InitialStatus = StatusPending

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
	StatusCancelled:  4,
}

func ParseStatus(s string) (Status, error) {
	for st := range statusRank {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsRegression reports a move backwards along Pending→Processing→Shipped→Delivered,
// or a move out of Cancelled. Such moves are still allowed; callers only log them.
func IsRegression(from, to Status) bool {
	if from == to {
		return false
	}
	if from == StatusCancelled {
		return true
	}
	if to == StatusCancelled {
		return false
	}
	return statusRank[to] < statusRank[from]
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, string(PaymentUnpaid)):
		return PaymentUnpaid, nil
	case strings.EqualFold(s, string(PaymentPaid)):
		return PaymentPaid, nil
	}
	return "", fmt.Errorf("%w: payment status %q", ErrInvalidStatus, s)
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

// InitialPaymentStatus: cash on delivery starts unpaid, online checkout is paid upfront.
func InitialPaymentStatus(m PaymentMethod) (PaymentStatus, error) {
	switch PaymentMethod(strings.ToUpper(string(m))) {
	case PaymentCOD:
		return PaymentUnpaid, nil
	case PaymentOnline:
		return PaymentPaid, nil
	}
	return "", fmt.Errorf("%w: payment method %q", ErrInvalidOrder, m)
}
