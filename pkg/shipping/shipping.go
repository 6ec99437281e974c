package shipping

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CostLookup resolves the delivery charge for a destination city.
type CostLookup interface {
	CostFor(ctx context.Context, city string) (decimal.Decimal, error)
}

// StaticTable resolves shipping costs from an in-memory city table with a
// fallback for cities that are not listed.
type StaticTable struct {
	defaultCost decimal.Decimal
	byCity      map[string]decimal.Decimal
}

// NewStaticTable builds a lookup from the provided table. City keys are
// matched case-insensitively.
func NewStaticTable(defaultCost decimal.Decimal, byCity map[string]decimal.Decimal) (*StaticTable, error) {
	if defaultCost.IsNegative() {
		return nil, fmt.Errorf("default shipping cost cannot be negative")
	}
	normalized := make(map[string]decimal.Decimal, len(byCity))
	for city, cost := range byCity {
		if cost.IsNegative() {
			return nil, fmt.Errorf("shipping cost for %q cannot be negative", city)
		}
		normalized[normalizeCity(city)] = cost
	}
	return &StaticTable{defaultCost: defaultCost, byCity: normalized}, nil
}

// DefaultCityTable lists the metro destinations with negotiated courier rates.
func DefaultCityTable() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"Colombo":  decimal.NewFromInt(50),
		"Dehiwala": decimal.NewFromInt(75),
		"Moratuwa": decimal.NewFromInt(75),
		"Negombo":  decimal.NewFromInt(150),
		"Kandy":    decimal.NewFromInt(250),
		"Galle":    decimal.NewFromInt(250),
	}
}

// CostFor returns the cost for the city, falling back to the default rate.
func (s *StaticTable) CostFor(ctx context.Context, city string) (decimal.Decimal, error) {
	if cost, ok := s.byCity[normalizeCity(city)]; ok {
		return cost, nil
	}
	return s.defaultCost, nil
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
