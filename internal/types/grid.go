package types

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultPricePrecision is the number of decimals grid levels are rounded to.
const DefaultPricePrecision = 8

// GridPlan describes an arithmetic ladder of resting limit orders between two bounds.
type GridPlan struct {
	Symbol            string          `yaml:"symbol" json:"symbol"`
	Lower             decimal.Decimal `yaml:"lower" json:"lower"`
	Upper             decimal.Decimal `yaml:"upper" json:"upper"`
	Levels            int             `yaml:"levels" json:"levels"`
	QuantityPerLevel  decimal.Decimal `yaml:"quantity_per_level" json:"quantity_per_level"`
	QuantityPrecision int32           `yaml:"quantity_precision" json:"quantity_precision"`
	PricePrecision    int32           `yaml:"price_precision" json:"price_precision"`
	TimeInForce       TimeInForce     `yaml:"time_in_force" json:"time_in_force"`
}

// Validate checks the bounds, level count and quantity, and that the levels
// stay distinct after rounding. QuantityPerLevel must fit QuantityPrecision.
func (p GridPlan) Validate() error {
	level := OrderRequest{
		Symbol:        p.Symbol,
		Side:          OrderSideBuy,
		Kind:          OrderKindLimit,
		Quantity:      p.QuantityPerLevel,
		Price:         optional.Some(p.Upper),
		StopPrice:     optional.None[decimal.Decimal](),
		TimeInForce:   p.TimeInForce,
		ClientOrderID: "",
	}
	if err := level.Validate(); err != nil {
		return err
	}

	if !p.Lower.IsPositive() {
		return errors.NewValidationError("lower", p.Lower.String(), "must be greater than zero")
	}

	if !p.Upper.GreaterThan(p.Lower) {
		return errors.NewValidationErrorf("upper", p.Upper.String(), "must be above lower bound %s", p.Lower.String())
	}

	if p.Levels < 2 {
		return errors.NewValidationErrorf("levels", "", "must be at least 2, got %d", p.Levels)
	}

	if p.QuantityPrecision < 0 {
		return errors.NewValidationErrorf("quantity_precision", "", "must not be negative, got %d", p.QuantityPrecision)
	}

	quantityPrecision := p.QuantityPrecision
	if quantityPrecision == 0 {
		quantityPrecision = DefaultQuantityPrecision
	}

	if err := CheckScale("quantity_per_level", p.QuantityPerLevel, quantityPrecision); err != nil {
		return err
	}

	if p.PricePrecision < 0 {
		return errors.NewValidationErrorf("price_precision", "", "must not be negative, got %d", p.PricePrecision)
	}

	_, err := p.PriceLevels()

	return err
}

// PriceLevels returns the ladder lower + k*(upper-lower)/(levels-1) for
// k in 0..levels-1, rounded to PricePrecision. The first level is exactly
// lower and the last exactly upper. Levels are strictly increasing.
func (p GridPlan) PriceLevels() ([]decimal.Decimal, error) {
	if p.Levels < 2 {
		return nil, errors.NewValidationErrorf("levels", "", "must be at least 2, got %d", p.Levels)
	}

	precision := p.PricePrecision
	if precision == 0 {
		precision = DefaultPricePrecision
	}

	span := p.Upper.Sub(p.Lower)
	steps := decimal.NewFromInt(int64(p.Levels - 1))
	levels := make([]decimal.Decimal, p.Levels)

	for k := 0; k < p.Levels; k++ {
		switch k {
		case 0:
			levels[k] = p.Lower
		case p.Levels - 1:
			levels[k] = p.Upper
		default:
			// Multiply before dividing so even ladders stay exact.
			offset := span.Mul(decimal.NewFromInt(int64(k))).DivRound(steps, precision+4)
			levels[k] = p.Lower.Add(offset).Round(precision)
		}

		if k > 0 && !levels[k].GreaterThan(levels[k-1]) {
			return nil, errors.NewValidationErrorf("levels", "",
				"%d levels between %s and %s collide at precision %d",
				p.Levels, p.Lower.String(), p.Upper.String(), precision)
		}
	}

	return levels, nil
}
