// Package loss decomposes elapsed equipment time into the OEE loss
// taxonomy: availability losses by reason, speed loss, quality losses and
// unscheduled time, alongside cumulative production quantities.
package loss

import (
	"errors"
	"fmt"
	"time"

	history "oee-platform/internal/history/domain"
	"oee-platform/internal/plant"
	"oee-platform/internal/uom"
)

// EquipmentLoss accumulates the loss breakdown for one equipment, material
// and interval. It is built empty for a request, populated by the
// calculator, then handed to the caller. Not safe for concurrent mutation;
// each calculation owns its aggregate.
type EquipmentLoss struct {
	Equipment *plant.Equipment
	Material  *plant.Material

	hasWindow bool
	start     time.Time
	end       time.Time

	designSpeed uom.Quantity // per hour

	good    uom.Quantity
	reject  uom.Quantity
	startup uom.Quantity

	losses       map[plant.TimeLoss]time.Duration
	reasonLosses map[plant.TimeLoss]map[string]time.Duration

	records []*history.Record
}

// NewEquipmentLoss builds an empty aggregate for a calculation request.
func NewEquipmentLoss(equipment *plant.Equipment, material *plant.Material) (*EquipmentLoss, error) {
	if equipment == nil {
		return nil, errors.New("loss: nil equipment")
	}
	if material == nil {
		return nil, errors.New("loss: nil material")
	}
	return &EquipmentLoss{
		Equipment:    equipment,
		Material:     material,
		losses:       make(map[plant.TimeLoss]time.Duration),
		reasonLosses: make(map[plant.TimeLoss]map[string]time.Duration),
	}, nil
}

// SetDesignSpeed stores the ideal run rate used for time conversions.
func (l *EquipmentLoss) SetDesignSpeed(rate uom.Quantity) error {
	if rate.Amount.Sign() <= 0 {
		return ErrNoDesignSpeed
	}
	l.designSpeed = rate
	return nil
}

// DesignSpeed returns the ideal run rate.
func (l *EquipmentLoss) DesignSpeed() uom.Quantity { return l.designSpeed }

// ExtendWindow widens the observed window to cover [start, end].
func (l *EquipmentLoss) ExtendWindow(start, end time.Time) {
	if !l.hasWindow {
		l.start, l.end, l.hasWindow = start, end, true
		return
	}
	if start.Before(l.start) {
		l.start = start
	}
	if end.After(l.end) {
		l.end = end
	}
}

// Window returns the observed window; ok is false until a record extended it.
func (l *EquipmentLoss) Window() (start, end time.Time, ok bool) {
	return l.start, l.end, l.hasWindow
}

// ObservedDuration is the elapsed time of the observed window.
func (l *EquipmentLoss) ObservedDuration() time.Duration {
	if !l.hasWindow {
		return 0
	}
	return l.end.Sub(l.start)
}

// IncrementGood adds to the cumulative good quantity.
func (l *EquipmentLoss) IncrementGood(q uom.Quantity) error {
	sum, err := l.good.Add(q)
	if err != nil {
		return fmt.Errorf("loss: good quantity: %w", err)
	}
	l.good = sum
	return nil
}

// IncrementReject adds to the cumulative reject quantity.
func (l *EquipmentLoss) IncrementReject(q uom.Quantity) error {
	sum, err := l.reject.Add(q)
	if err != nil {
		return fmt.Errorf("loss: reject quantity: %w", err)
	}
	l.reject = sum
	return nil
}

// IncrementStartup adds to the cumulative startup quantity.
func (l *EquipmentLoss) IncrementStartup(q uom.Quantity) error {
	sum, err := l.startup.Add(q)
	if err != nil {
		return fmt.Errorf("loss: startup quantity: %w", err)
	}
	l.startup = sum
	return nil
}

// GoodQuantity returns the cumulative good quantity.
func (l *EquipmentLoss) GoodQuantity() uom.Quantity { return l.good }

// RejectQuantity returns the cumulative reject quantity.
func (l *EquipmentLoss) RejectQuantity() uom.Quantity { return l.reject }

// StartupQuantity returns the cumulative startup quantity.
func (l *EquipmentLoss) StartupQuantity() uom.Quantity { return l.startup }

// ConvertToLostTime converts a produced quantity into equivalent time at the
// design speed. Quantities are converted into the rate's unit first;
// amount-only quantities divide raw amounts.
func (l *EquipmentLoss) ConvertToLostTime(q uom.Quantity) (time.Duration, error) {
	if l.designSpeed.Amount.Sign() <= 0 {
		return 0, ErrNoDesignSpeed
	}
	converted, err := q.Convert(l.designSpeed.Unit)
	if err != nil {
		return 0, fmt.Errorf("loss: convert %s to rate unit: %w", q, err)
	}
	hours := converted.Amount.Div(l.designSpeed.Amount)
	return time.Duration(hours.InexactFloat64() * float64(time.Hour)), nil
}

// IncrementLoss adds a duration to the reason's bucket within its loss
// category. Negative additions are floored at zero: category totals never
// go negative.
func (l *EquipmentLoss) IncrementLoss(reason *plant.Reason, d time.Duration) {
	if reason == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	category := reason.LossCategory
	l.losses[category] += d
	byReason := l.reasonLosses[category]
	if byReason == nil {
		byReason = make(map[string]time.Duration)
		l.reasonLosses[category] = byReason
	}
	byReason[reason.Name] += d
}

// AddLoss adds a duration directly to a category bucket.
func (l *EquipmentLoss) AddLoss(category plant.TimeLoss, d time.Duration) {
	if d < 0 {
		d = 0
	}
	l.losses[category] += d
}

// SetLoss overwrites a category bucket.
func (l *EquipmentLoss) SetLoss(category plant.TimeLoss, d time.Duration) {
	if d < 0 {
		d = 0
	}
	l.losses[category] = d
}

// Loss returns the duration accumulated in a category.
func (l *EquipmentLoss) Loss(category plant.TimeLoss) time.Duration {
	return l.losses[category]
}

// Losses returns a copy of the category totals.
func (l *EquipmentLoss) Losses() map[plant.TimeLoss]time.Duration {
	out := make(map[plant.TimeLoss]time.Duration, len(l.losses))
	for category, d := range l.losses {
		out[category] = d
	}
	return out
}

// ReasonLosses returns a copy of the per-reason breakdown for a category.
func (l *EquipmentLoss) ReasonLosses(category plant.TimeLoss) map[string]time.Duration {
	byReason := l.reasonLosses[category]
	out := make(map[string]time.Duration, len(byReason))
	for name, d := range byReason {
		out[name] = d
	}
	return out
}

// AppendRecords keeps the contributing records on the aggregate.
func (l *EquipmentLoss) AppendRecords(records ...*history.Record) {
	l.records = append(l.records, records...)
}

// Records returns the contributing history records.
func (l *EquipmentLoss) Records() []*history.Record { return l.records }

// availabilityReasonLoss sums every reason-attributed bucket.
func (l *EquipmentLoss) availabilityReasonLoss() time.Duration {
	var total time.Duration
	for _, category := range plant.AvailabilityLosses() {
		total += l.losses[category]
	}
	return total
}

// CalculateReducedSpeedLoss attributes the residual of the observed window
// to reduced speed: observed time minus reason-attributed availability
// losses minus the ideal time to produce everything counted. The residual
// keeps the invariant that all buckets plus true productive time sum to the
// observed window; it is floored at zero.
func (l *EquipmentLoss) CalculateReducedSpeedLoss() error {
	if !l.hasWindow {
		return ErrNoWindow
	}
	total, err := l.good.Add(l.reject)
	if err != nil {
		return err
	}
	total, err = total.Add(l.startup)
	if err != nil {
		return err
	}
	ideal, err := l.ConvertToLostTime(total)
	if err != nil {
		return err
	}

	reduced := l.ObservedDuration() - l.availabilityReasonLoss() - ideal
	if reduced < 0 {
		reduced = 0
	}
	l.losses[plant.LossReducedSpeed] = reduced
	return nil
}

// effectiveScheduled is the observed window minus time outside the schedule.
func (l *EquipmentLoss) effectiveScheduled() time.Duration {
	return l.ObservedDuration() - l.losses[plant.LossNotScheduled] - l.losses[plant.LossUnscheduled]
}

// Availability is reported production time over scheduled time.
func (l *EquipmentLoss) Availability() float64 {
	scheduled := l.effectiveScheduled()
	if scheduled <= 0 {
		return 0
	}
	var downtime time.Duration
	for _, category := range plant.AvailabilityLosses() {
		if category == plant.LossUnscheduled {
			continue
		}
		downtime += l.losses[category]
	}
	return ratio(scheduled-downtime, scheduled)
}

// Performance is net production time over reported production time.
func (l *EquipmentLoss) Performance() float64 {
	scheduled := l.effectiveScheduled()
	var downtime time.Duration
	for _, category := range plant.AvailabilityLosses() {
		if category == plant.LossUnscheduled {
			continue
		}
		downtime += l.losses[category]
	}
	reported := scheduled - downtime
	if reported <= 0 {
		return 0
	}
	return ratio(reported-l.losses[plant.LossReducedSpeed], reported)
}

// Quality is value-adding time over net production time.
func (l *EquipmentLoss) Quality() float64 {
	scheduled := l.effectiveScheduled()
	var downtime time.Duration
	for _, category := range plant.AvailabilityLosses() {
		if category == plant.LossUnscheduled {
			continue
		}
		downtime += l.losses[category]
	}
	net := scheduled - downtime - l.losses[plant.LossReducedSpeed]
	if net <= 0 {
		return 0
	}
	valueAdding := net - l.losses[plant.LossRejectRework] - l.losses[plant.LossStartupYield]
	return ratio(valueAdding, net)
}

// OEE is the composite availability x performance x quality percentage.
func (l *EquipmentLoss) OEE() float64 {
	return l.Availability() * l.Performance() * l.Quality()
}

func ratio(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	value := float64(part) / float64(whole)
	if value < 0 {
		return 0
	}
	return value
}

func (l *EquipmentLoss) String() string {
	return fmt.Sprintf("loss equipment=%s material=%s window=[%s, %s] good=%s reject=%s startup=%s",
		l.Equipment.Name, l.Material.Name,
		l.start.Format(time.RFC3339), l.end.Format(time.RFC3339),
		l.good, l.reject, l.startup)
}
