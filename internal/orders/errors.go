package orders

import "errors"

var (
	ErrInvalidLineItem = errors.New("invalid line item")
	ErrInvalidOrder    = errors.New("invalid order")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrNotFound        = errors.New("not found")
)
