// Package history holds the persisted event history the loss calculator
// replays: production counts and availability (downtime) spans.
package history

import (
	"errors"
	"fmt"
	"time"

	"oee-platform/internal/plant"
	resolution "oee-platform/internal/resolution/domain"
	"oee-platform/internal/uom"
)

// Kind discriminates the record variants sharing the base fields.
type Kind string

const (
	KindProduction   Kind = "PRODUCTION"
	KindAvailability Kind = "AVAILABILITY"
)

// ProductionType classifies a produced quantity.
type ProductionType string

const (
	ProductionGood    ProductionType = "GOOD"
	ProductionReject  ProductionType = "REJECT"
	ProductionStartup ProductionType = "STARTUP"
)

// ProductionTypeOf maps a production resolver type to a production type.
func ProductionTypeOf(t resolution.Type) (ProductionType, error) {
	switch t {
	case resolution.TypeProdGood:
		return ProductionGood, nil
	case resolution.TypeProdReject:
		return ProductionReject, nil
	case resolution.TypeProdStartup:
		return ProductionStartup, nil
	default:
		return "", fmt.Errorf("history: %s is not a production resolver type", t)
	}
}

// Record is one persisted history entry. The base fields are shared; the
// Kind tag selects which variant fields are meaningful. Records are
// append-only once persisted except for LostTime, which the loss calculator
// back-fills.
type Record struct {
	ID            int64 // zero until first persisted
	Kind          Kind
	EquipmentName string
	SourceID      string
	MaterialName  string
	Job           string
	Start         time.Time
	End           *time.Time // nil while the span is still open
	LostTime      time.Duration

	// production variant
	ProductionType ProductionType
	Quantity       *uom.Quantity

	// availability variant
	Reason   *plant.Reason
	Duration time.Duration
}

// NewProductionRecord builds a production record from a resolved event.
func NewProductionRecord(event *resolution.Event) (*Record, error) {
	if event == nil {
		return nil, errors.New("history: nil event")
	}
	productionType, err := ProductionTypeOf(event.Type)
	if err != nil {
		return nil, err
	}
	if event.Quantity == nil {
		return nil, fmt.Errorf("history: production event for source %s has no quantity", event.SourceID)
	}
	record := &Record{
		Kind:           KindProduction,
		EquipmentName:  event.Equipment.Name,
		SourceID:       event.SourceID,
		Job:            event.Job,
		Start:          event.Timestamp,
		ProductionType: productionType,
		Quantity:       event.Quantity,
	}
	if event.Material != nil {
		record.MaterialName = event.Material.Name
	}
	return record, nil
}

// NewAvailabilityRecord builds an open-ended availability record from a
// resolved event. The reason is mandatory: an availability record never
// persists without one.
func NewAvailabilityRecord(event *resolution.Event) (*Record, error) {
	if event == nil {
		return nil, errors.New("history: nil event")
	}
	if event.Type != resolution.TypeAvailability {
		return nil, fmt.Errorf("history: %s is not an availability event", event.Type)
	}
	if event.Reason == nil {
		return nil, errors.New("history: availability event without a reason")
	}
	record := &Record{
		Kind:          KindAvailability,
		EquipmentName: event.Equipment.Name,
		SourceID:      event.SourceID,
		Job:           event.Job,
		Start:         event.Timestamp,
		Reason:        event.Reason,
	}
	if event.Material != nil {
		record.MaterialName = event.Material.Name
	}
	return record, nil
}

// Close sets the end time and, for availability records, the elapsed
// duration.
func (r *Record) Close(end time.Time) error {
	if end.Before(r.Start) {
		return fmt.Errorf("history: record end %s before start %s", end, r.Start)
	}
	r.End = &end
	if r.Kind == KindAvailability {
		r.Duration = end.Sub(r.Start)
	}
	return nil
}

// IsOpen reports whether the span has no end yet.
func (r *Record) IsOpen() bool { return r.End == nil }
