package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used in the observation log.
const DateLayout = "2006-01-02"

// PriceObservation is one durable price reading for a tracked product.
type PriceObservation struct {
	Date        time.Time
	ProductName string
	Price       decimal.Decimal
}

// Quote is a live reading returned by a fetcher before it is logged.
type Quote struct {
	Name  string
	Price decimal.Decimal
}

// Day truncates t to its calendar day. The result is anchored at UTC
// midnight so day arithmetic stays exact across DST transitions.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole days from a to b, positive when b is later.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// NewObservation builds a validated observation dated to t's calendar day.
func NewObservation(t time.Time, name string, price decimal.Decimal) (PriceObservation, error) {
	if name == "" {
		return PriceObservation{}, fmt.Errorf("observation: product name is empty")
	}
	if price.IsNegative() {
		return PriceObservation{}, fmt.Errorf("observation: negative price %s", price)
	}
	return PriceObservation{Date: Day(t), ProductName: name, Price: price}, nil
}

// DateString renders the observation date in log format.
func (o PriceObservation) DateString() string { return o.Date.Format(DateLayout) }

// PriceString renders the price with exactly two fractional digits.
func (o PriceObservation) PriceString() string { return o.Price.StringFixed(2) }
