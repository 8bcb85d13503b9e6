package stock

import "errors"

var ErrInvalidStockValue = errors.New("invalid stock value")

const (
	DefaultLowThreshold = 5
	DefaultOutThreshold = 0
)

// Thresholds bound the three stock bands. Out < Low is expected but not enforced.
type Thresholds struct {
	Low int `json:"low" yaml:"low"`
	Out int `json:"out" yaml:"out"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLowThreshold, Out: DefaultOutThreshold}
}

type Band int

const (
	BandInStock Band = iota
	BandLow
	BandOut
)

func (b Band) String() string {
	switch b {
	case BandInStock:
		return "IN_STOCK"
	case BandLow:
		return "LOW"
	case BandOut:
		return "OUT"
	}
	return "UNKNOWN"
}

// BandOf checks "out" first so that a value equal to the out threshold is never "low".
func BandOf(stock int, th Thresholds) Band {
	switch {
	case stock <= th.Out:
		return BandOut
	case stock <= th.Low:
		return BandLow
	default:
		return BandInStock
	}
}
