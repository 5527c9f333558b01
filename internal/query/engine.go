// Package query evaluates price statistics over a snapshot of the
// observation log. Evaluation is pure: no I/O, no shared state.
package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"PriceSentry/internal/model"
)

// ErrNoData means no observation fell inside the requested window.
var ErrNoData = errors.New("query: no observations in window")

// Metric selects the aggregate to compute over the window.
type Metric int

const (
	Lowest Metric = iota
	Average
)

func (m Metric) String() string {
	switch m {
	case Lowest:
		return "lowest"
	case Average:
		return "average"
	default:
		return "unknown"
	}
}

// Request names one evaluation: which product, which aggregate, and the
// trailing window measured back from Today.
type Request struct {
	Identity   string
	Metric     Metric
	WindowDays int
	Today      time.Time
}

// Result carries the aggregate and how many observations produced it.
type Result struct {
	Value   decimal.Decimal
	Samples int
}

// Evaluate filters the snapshot to the trailing window and reduces it.
// The snapshot may arrive in any order; it is treated as a multiset.
func Evaluate(snapshot []model.PriceObservation, req Request) (Result, error) {
	prices := windowPrices(snapshot, req.Identity, req.WindowDays, req.Today)
	if len(prices) == 0 {
		return Result{}, ErrNoData
	}
	switch req.Metric {
	case Lowest:
		return Result{Value: decimal.Min(prices[0], prices[1:]...), Samples: len(prices)}, nil
	case Average:
		return Result{Value: decimal.Avg(prices[0], prices[1:]...), Samples: len(prices)}, nil
	default:
		return Result{}, fmt.Errorf("query: unknown metric %d", req.Metric)
	}
}

// windowPrices keeps prices whose record matches identity and whose date is
// within [today-windowDays, today]. Both bounds are inclusive; future-dated
// records never count.
func windowPrices(snapshot []model.PriceObservation, identity string, windowDays int, today time.Time) []decimal.Decimal {
	day := model.Day(today)
	var prices []decimal.Decimal
	for _, o := range snapshot {
		if o.ProductName != identity {
			continue
		}
		age := model.DaysBetween(o.Date, day)
		if age < 0 || age > windowDays {
			continue
		}
		prices = append(prices, o.Price)
	}
	return prices
}
