package fetch

import (
	"context"

	"github.com/shopspring/decimal"

	"PriceSentry/internal/model"
)

// StaticFetcher returns controllable fixed data for development and testing.
type StaticFetcher struct {
	ProductName string
	Price       decimal.Decimal
	Err         error
}

func (s *StaticFetcher) Name() string { return "static" }

func (s *StaticFetcher) Fetch(_ context.Context, _ string) (model.Quote, error) {
	if s.Err != nil {
		return model.Quote{}, s.Err
	}
	return model.Quote{Name: s.ProductName, Price: s.Price}, nil
}
