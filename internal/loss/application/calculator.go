package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	history "oee-platform/internal/history/domain"
	loss "oee-platform/internal/loss/domain"
	"oee-platform/internal/plant"
)

// ErrInvalidInterval is returned when the requested interval is inverted.
var ErrInvalidInterval = errors.New("loss: interval end before start")

// Calculator replays persisted history over an interval and decomposes the
// elapsed time into the loss taxonomy. It is stateless; calculations for
// different requests run fully in parallel.
type Calculator struct {
	records history.RecordRepository
	logger  *log.Logger
}

// NewCalculator constructs a loss calculator.
func NewCalculator(records history.RecordRepository, logger *log.Logger) (*Calculator, error) {
	if records == nil {
		return nil, errors.New("loss: nil record repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Calculator{records: records, logger: logger}, nil
}

// CalculateLoss builds the loss breakdown for equipment + material over the
// closed interval [from, to]. Records overlapping the interval are clipped
// at its edges; the observed window is the union of the clipped spans and
// never extends past the request. Failures abort the whole request; no
// partial aggregate is returned.
func (c *Calculator) CalculateLoss(ctx context.Context, equipment *plant.Equipment, material *plant.Material, from, to time.Time) (*loss.EquipmentLoss, error) {
	if to.Before(from) {
		return nil, ErrInvalidInterval
	}

	equipmentLoss, err := loss.NewEquipmentLoss(equipment, material)
	if err != nil {
		return nil, err
	}

	schedule, err := equipment.FindSchedule()
	if err != nil {
		return nil, fmt.Errorf("equipment %s: %w", equipment.Name, err)
	}

	eqm := equipment.EquipmentMaterialFor(material)
	if eqm == nil || eqm.RunRate.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("equipment %s, material %s: %w", equipment.Name, material.Name, plant.ErrNoRunRate)
	}
	if err := equipmentLoss.SetDesignSpeed(eqm.RunRate); err != nil {
		return nil, err
	}

	if err := c.applyProduction(ctx, equipmentLoss, equipment.Name, from, to); err != nil {
		return nil, err
	}
	if err := c.applyAvailability(ctx, equipmentLoss, equipment.Name, from, to); err != nil {
		return nil, err
	}

	// Residual speed loss and schedule time need an observed window; with no
	// overlapping records there is nothing to attribute.
	if start, end, ok := equipmentLoss.Window(); ok {
		if err := equipmentLoss.CalculateReducedSpeedLoss(); err != nil {
			return nil, err
		}
		notScheduled, err := schedule.NonWorkingTime(start, end)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", schedule.Name, err)
		}
		equipmentLoss.SetLoss(plant.LossNotScheduled, notScheduled)
	}

	c.logger.Printf("loss: calculated %s", equipmentLoss)
	return equipmentLoss, nil
}

func (c *Calculator) applyProduction(ctx context.Context, equipmentLoss *loss.EquipmentLoss, equipmentName string, from, to time.Time) error {
	records, err := c.records.ProductionRecords(ctx, equipmentName, from, to)
	if err != nil {
		return fmt.Errorf("loss: fetch production records: %w", err)
	}
	equipmentLoss.AppendRecords(records...)

	for _, record := range records {
		observeWindow(equipmentLoss, record, from, to)
		if record.Quantity == nil {
			return fmt.Errorf("loss: production record %d has no quantity", record.ID)
		}
		quantity := *record.Quantity

		switch record.ProductionType {
		case history.ProductionGood:
			if err := equipmentLoss.IncrementGood(quantity); err != nil {
				return err
			}
		case history.ProductionReject:
			if err := equipmentLoss.IncrementReject(quantity); err != nil {
				return err
			}
			lost, err := equipmentLoss.ConvertToLostTime(quantity)
			if err != nil {
				return err
			}
			record.LostTime = lost
			equipmentLoss.AddLoss(plant.LossRejectRework, lost)
		case history.ProductionStartup:
			if err := equipmentLoss.IncrementStartup(quantity); err != nil {
				return err
			}
			lost, err := equipmentLoss.ConvertToLostTime(quantity)
			if err != nil {
				return err
			}
			record.LostTime = lost
			equipmentLoss.AddLoss(plant.LossStartupYield, lost)
		default:
			return fmt.Errorf("loss: production record %d has unknown type %q", record.ID, record.ProductionType)
		}
	}
	return nil
}

// applyAvailability attributes each downtime span to its reason, clipping at
// the interval edges. The first record sheds its leading edge before `from`;
// otherwise the last record is truncated at `to`. A single-record list only
// ever gets the first-record rule; that asymmetry is intentional and
// downstream consumers depend on it.
func (c *Calculator) applyAvailability(ctx context.Context, equipmentLoss *loss.EquipmentLoss, equipmentName string, from, to time.Time) error {
	records, err := c.records.AvailabilityRecords(ctx, equipmentName, from, to)
	if err != nil {
		return fmt.Errorf("loss: fetch availability records: %w", err)
	}
	equipmentLoss.AppendRecords(records...)

	for i, record := range records {
		observeWindow(equipmentLoss, record, from, to)
		if record.Reason == nil {
			return fmt.Errorf("loss: availability record %d has no reason", record.ID)
		}

		eventDuration := record.Duration
		if record.IsOpen() && eventDuration == 0 {
			// A still-open span is measured to the interval edge.
			eventDuration = to.Sub(record.Start)
		}
		duration := eventDuration

		if i == 0 {
			if from.After(record.Start) {
				duration = eventDuration - from.Sub(record.Start)
			}
		} else if i == len(records)-1 {
			if record.IsOpen() || record.End.After(to) {
				edge := to.Sub(record.Start)
				if edge < eventDuration {
					duration = edge
				}
			}
		}
		if duration < 0 {
			duration = 0
		}

		equipmentLoss.IncrementLoss(record.Reason, duration)
		record.LostTime = duration
	}
	return nil
}

// observeWindow extends the aggregate's observed window by the record's
// span clipped to [from, to]; an open end counts as `to`.
func observeWindow(equipmentLoss *loss.EquipmentLoss, record *history.Record, from, to time.Time) {
	start := record.Start
	if start.Before(from) {
		start = from
	}
	end := to
	if record.End != nil && record.End.Before(to) {
		end = *record.End
	}
	equipmentLoss.ExtendWindow(start, end)
}
