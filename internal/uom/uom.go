package uom

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Unit is a named unit of measure. Units sharing the same base symbol are
// mutually convertible through their factors; e.g. "case" with factor 24 and
// base "ea" converts to "ea" by multiplying amounts by 24.
type Unit struct {
	Name   string
	Symbol string
	Base   string
	Factor decimal.Decimal
}

// NewUnit constructs a unit with a positive conversion factor to its base.
func NewUnit(name, symbol, base string, factor decimal.Decimal) (*Unit, error) {
	if symbol == "" {
		return nil, fmt.Errorf("uom: empty symbol for unit %q", name)
	}
	if base == "" {
		base = symbol
	}
	if factor.Sign() <= 0 {
		return nil, fmt.Errorf("%w: unit %q", ErrInvalidFactor, symbol)
	}
	return &Unit{Name: name, Symbol: symbol, Base: base, Factor: factor}, nil
}

// MustUnit is NewUnit for static unit tables.
func MustUnit(name, symbol, base string, factor decimal.Decimal) *Unit {
	unit, err := NewUnit(name, symbol, base, factor)
	if err != nil {
		panic(err)
	}
	return unit
}

// ConversionTo returns the multiplier converting amounts of u into amounts
// of the target unit.
func (u *Unit) ConversionTo(target *Unit) (decimal.Decimal, error) {
	if u == nil || target == nil {
		return decimal.Zero, ErrNilUnit
	}
	if u.Base != target.Base {
		return decimal.Zero, fmt.Errorf("%w: %s and %s", ErrIncompatibleUnits, u.Symbol, target.Symbol)
	}
	return u.Factor.Div(target.Factor), nil
}

// Quantity is an amount with an optional unit of measure. A nil unit marks
// an amount-only quantity; such quantities convert and add by raw amount.
type Quantity struct {
	Amount decimal.Decimal
	Unit   *Unit
}

// NewQuantity builds a quantity from a float amount.
func NewQuantity(amount float64, unit *Unit) Quantity {
	return Quantity{Amount: decimal.NewFromFloat(amount), Unit: unit}
}

// Convert expresses the quantity in the target unit. Converting an
// amount-only quantity to a unit (or any quantity to no unit) keeps the raw
// amount.
func (q Quantity) Convert(target *Unit) (Quantity, error) {
	if q.Unit == nil || target == nil {
		return Quantity{Amount: q.Amount, Unit: target}, nil
	}
	factor, err := q.Unit.ConversionTo(target)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Amount: q.Amount.Mul(factor), Unit: target}, nil
}

// Add returns q plus other expressed in q's unit. Adding to a zero-valued
// quantity adopts the other's unit.
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if q.Unit == nil && q.Amount.IsZero() {
		return other, nil
	}
	converted, err := other.Convert(q.Unit)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Amount: q.Amount.Add(converted.Amount), Unit: q.Unit}, nil
}

// IsZero reports whether the amount is zero.
func (q Quantity) IsZero() bool { return q.Amount.IsZero() }

// Float returns the amount as a float64 for display and export.
func (q Quantity) Float() float64 { return q.Amount.InexactFloat64() }

func (q Quantity) String() string {
	if q.Unit == nil {
		return q.Amount.String()
	}
	return q.Amount.String() + " " + q.Unit.Symbol
}

// Registry resolves units by symbol for persistence round trips.
type Registry struct {
	mu    sync.RWMutex
	units map[string]*Unit
}

// NewRegistry builds a registry holding the given units.
func NewRegistry(units ...*Unit) *Registry {
	r := &Registry{units: make(map[string]*Unit, len(units))}
	for _, unit := range units {
		if unit != nil {
			r.units[unit.Symbol] = unit
		}
	}
	return r
}

// Register adds or replaces a unit.
func (r *Registry) Register(unit *Unit) {
	if unit == nil {
		return
	}
	r.mu.Lock()
	r.units[unit.Symbol] = unit
	r.mu.Unlock()
}

// Find returns the unit for a symbol.
func (r *Registry) Find(symbol string) (*Unit, error) {
	r.mu.RLock()
	unit := r.units[symbol]
	r.mu.RUnlock()
	if unit == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, symbol)
	}
	return unit, nil
}

// DefaultRegistry returns a registry with the stock counting units.
func DefaultRegistry() *Registry {
	each := MustUnit("each", "ea", "ea", decimal.NewFromInt(1))
	dozen := MustUnit("dozen", "dz", "ea", decimal.NewFromInt(12))
	kilogram := MustUnit("kilogram", "kg", "kg", decimal.NewFromInt(1))
	tonne := MustUnit("metric ton", "t", "kg", decimal.NewFromInt(1000))
	litre := MustUnit("litre", "L", "L", decimal.NewFromInt(1))
	return NewRegistry(each, dozen, kilogram, tonne, litre)
}
