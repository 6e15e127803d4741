package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	history "oee-platform/internal/history/domain"
	historymemory "oee-platform/internal/history/infrastructure/memory"
	"oee-platform/internal/plant"
	"oee-platform/internal/schedule"
	"oee-platform/internal/uom"
)

// Monday 2026-03-02 08:00 UTC.
var calcFrom = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type calcFixture struct {
	records    *historymemory.RecordRepository
	calculator *Calculator
	equipment  *plant.Equipment
	material   *plant.Material
	jam        *plant.Reason
	setup      *plant.Reason
}

// newCalcFixture builds a line running 24x7 at a design rate of 5 ea/hour.
func newCalcFixture(t *testing.T) *calcFixture {
	t.Helper()
	registry := uom.DefaultRegistry()
	each, _ := registry.Find("ea")

	var shifts []schedule.Shift
	for day := time.Sunday; day <= time.Saturday; day++ {
		shifts = append(shifts, schedule.Shift{Name: "all", Day: day, Duration: 24 * time.Hour})
	}
	sched, err := schedule.NewWorkSchedule("continuous", shifts)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}

	material := &plant.Material{Name: "BTL-500"}
	equipment, err := plant.NewEquipment("line-1", nil)
	if err != nil {
		t.Fatalf("new equipment: %v", err)
	}
	equipment.SetSchedule(sched)
	err = equipment.SetEquipmentMaterial(&plant.EquipmentMaterial{
		Material:   material,
		RunRate:    uom.NewQuantity(5, each),
		RejectUnit: each,
	})
	if err != nil {
		t.Fatalf("set equipment material: %v", err)
	}

	records := historymemory.NewRecordRepository()
	calculator, err := NewCalculator(records, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	return &calcFixture{
		records:    records,
		calculator: calculator,
		equipment:  equipment,
		material:   material,
		jam:        &plant.Reason{Name: "JAM", LossCategory: plant.LossUnplannedDowntime},
		setup:      &plant.Reason{Name: "CHANGEOVER", LossCategory: plant.LossSetup},
	}
}

func (f *calcFixture) addProduction(t *testing.T, productionType history.ProductionType, amount float64, start, end time.Time) *history.Record {
	t.Helper()
	registry := uom.DefaultRegistry()
	each, _ := registry.Find("ea")
	quantity := uom.NewQuantity(amount, each)
	record := &history.Record{
		Kind:           history.KindProduction,
		EquipmentName:  f.equipment.Name,
		MaterialName:   f.material.Name,
		Start:          start,
		ProductionType: productionType,
		Quantity:       &quantity,
	}
	if err := record.Close(end); err != nil {
		t.Fatalf("close record: %v", err)
	}
	if err := f.records.Save(context.Background(), record); err != nil {
		t.Fatalf("save record: %v", err)
	}
	return record
}

func (f *calcFixture) addAvailability(t *testing.T, reason *plant.Reason, start time.Time, end *time.Time) *history.Record {
	t.Helper()
	record := &history.Record{
		Kind:          history.KindAvailability,
		EquipmentName: f.equipment.Name,
		Start:         start,
		Reason:        reason,
	}
	if end != nil {
		if err := record.Close(*end); err != nil {
			t.Fatalf("close record: %v", err)
		}
	}
	if err := f.records.Save(context.Background(), record); err != nil {
		t.Fatalf("save record: %v", err)
	}
	return record
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCalculateLossInvalidInterval(t *testing.T) {
	f := newCalcFixture(t)
	_, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, calcFrom.Add(-time.Hour))
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestCalculateLossRequiresSchedule(t *testing.T) {
	f := newCalcFixture(t)
	bare, _ := plant.NewEquipment("line-2", nil)
	_, err := f.calculator.CalculateLoss(context.Background(), bare, f.material, calcFrom, calcFrom.Add(time.Hour))
	if !errors.Is(err, plant.ErrNoSchedule) {
		t.Fatalf("expected ErrNoSchedule, got %v", err)
	}
}

func TestCalculateLossRequiresRunRate(t *testing.T) {
	f := newCalcFixture(t)
	other := &plant.Material{Name: "CRT-100"}
	_, err := f.calculator.CalculateLoss(context.Background(), f.equipment, other, calcFrom, calcFrom.Add(time.Hour))
	if !errors.Is(err, plant.ErrNoRunRate) {
		t.Fatalf("expected ErrNoRunRate, got %v", err)
	}
}

func TestRejectQuantityConvertsToLostTime(t *testing.T) {
	f := newCalcFixture(t)
	record := f.addProduction(t, history.ProductionReject, 10, calcFrom, calcFrom.Add(4*time.Hour))

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, calcFrom.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 10 units at 5 per hour is 2 hours of equivalent production time.
	if got := result.Loss(plant.LossRejectRework); got != 2*time.Hour {
		t.Fatalf("expected 2h reject loss, got %s", got)
	}
	if record.LostTime != 2*time.Hour {
		t.Fatalf("expected lost time back-filled on record, got %s", record.LostTime)
	}
}

func TestStartupQuantityConvertsToLostTime(t *testing.T) {
	f := newCalcFixture(t)
	f.addProduction(t, history.ProductionStartup, 5, calcFrom, calcFrom.Add(2*time.Hour))

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, calcFrom.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Loss(plant.LossStartupYield); got != time.Hour {
		t.Fatalf("expected 1h startup loss, got %s", got)
	}
}

func TestGoodAtDesignRateHasNoReducedSpeed(t *testing.T) {
	f := newCalcFixture(t)
	// 10 units over 2 hours at a design rate of 5/hour is exactly on rate.
	record := f.addProduction(t, history.ProductionGood, 10, calcFrom, calcFrom.Add(2*time.Hour))

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, calcFrom.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Loss(plant.LossReducedSpeed); got != 0 {
		t.Fatalf("expected no reduced speed loss, got %s", got)
	}
	if got := result.GoodQuantity().Float(); got != 10 {
		t.Fatalf("expected good 10, got %v", got)
	}
	// Good counts carry no quality loss: the other cumulative quantities stay
	// zero and the record gets no lost time back-filled.
	if got := result.RejectQuantity(); !got.IsZero() {
		t.Fatalf("expected zero reject, got %s", got)
	}
	if got := result.StartupQuantity(); !got.IsZero() {
		t.Fatalf("expected zero startup, got %s", got)
	}
	if record.LostTime != 0 {
		t.Fatalf("expected no lost time on good record, got %s", record.LostTime)
	}
}

func TestReducedSpeedResidual(t *testing.T) {
	f := newCalcFixture(t)
	// 5 units over 2 hours at 5/hour leaves 1 hour unexplained.
	f.addProduction(t, history.ProductionGood, 5, calcFrom, calcFrom.Add(2*time.Hour))

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, calcFrom.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Loss(plant.LossReducedSpeed); got != time.Hour {
		t.Fatalf("expected 1h reduced speed, got %s", got)
	}
}

func TestSingleAvailabilityRecordShedsLeadingEdgeOnly(t *testing.T) {
	f := newCalcFixture(t)
	// Record 07:30 to 09:00 against a window starting 08:00: the half hour
	// before the window is shed, leaving one hour.
	f.addAvailability(t, f.jam, calcFrom.Add(-30*time.Minute), timePtr(calcFrom.Add(time.Hour)))

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, calcFrom.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Loss(plant.LossUnplannedDowntime); got != time.Hour {
		t.Fatalf("expected 1h downtime, got %s", got)
	}
	byReason := result.ReasonLosses(plant.LossUnplannedDowntime)
	if byReason["JAM"] != time.Hour {
		t.Fatalf("expected JAM bucket 1h, got %s", byReason["JAM"])
	}
}

func TestSingleOpenRecordIsNotRightTruncated(t *testing.T) {
	f := newCalcFixture(t)
	// An open span starting before the window: measured to the window edge,
	// then only the first-record rule applies.
	f.addAvailability(t, f.jam, calcFrom.Add(-30*time.Minute), nil)

	to := calcFrom.Add(4 * time.Hour)
	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, to)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Loss(plant.LossUnplannedDowntime); got != 4*time.Hour {
		t.Fatalf("expected 4h downtime, got %s", got)
	}
}

func TestLastAvailabilityRecordRightTruncated(t *testing.T) {
	f := newCalcFixture(t)
	to := calcFrom.Add(4 * time.Hour) // 12:00
	f.addAvailability(t, f.setup, calcFrom, timePtr(calcFrom.Add(time.Hour)))
	// Last record runs 11:00 to 13:00; only the hour inside the window counts.
	f.addAvailability(t, f.jam, calcFrom.Add(3*time.Hour), timePtr(calcFrom.Add(5*time.Hour)))

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, to)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Loss(plant.LossSetup); got != time.Hour {
		t.Fatalf("expected 1h setup, got %s", got)
	}
	if got := result.Loss(plant.LossUnplannedDowntime); got != time.Hour {
		t.Fatalf("expected 1h downtime, got %s", got)
	}
}

func TestInteriorAvailabilityRecordKeepsFullDuration(t *testing.T) {
	f := newCalcFixture(t)
	to := calcFrom.Add(4 * time.Hour) // 12:00
	f.addAvailability(t, f.setup, calcFrom, timePtr(calcFrom.Add(30*time.Minute)))
	// Interior record runs 09:00 to 13:00: neither edge rule applies, the
	// full four hours count even though the tail is outside the window.
	f.addAvailability(t, f.jam, calcFrom.Add(time.Hour), timePtr(calcFrom.Add(5*time.Hour)))
	f.addAvailability(t, f.jam, calcFrom.Add(210*time.Minute), timePtr(calcFrom.Add(270*time.Minute)))

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, to)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	// 4h interior + 30m last record truncated to the window edge.
	if got := result.Loss(plant.LossUnplannedDowntime); got != 4*time.Hour+30*time.Minute {
		t.Fatalf("expected 4h30m downtime, got %s", got)
	}
}

func TestNotScheduledTimeFromSchedule(t *testing.T) {
	f := newCalcFixture(t)
	// Day shift only: 06:00 to 14:00 on weekdays.
	var shifts []schedule.Shift
	for day := time.Monday; day <= time.Friday; day++ {
		shifts = append(shifts, schedule.Shift{Name: "day", Day: day, Start: 6 * time.Hour, Duration: 8 * time.Hour})
	}
	sched, err := schedule.NewWorkSchedule("day-only", shifts)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}
	f.equipment.SetSchedule(sched)

	// Window 04:00 to 08:00: two hours fall before the day shift starts.
	from := calcFrom.Add(-4 * time.Hour)
	f.addProduction(t, history.ProductionGood, 10, from, calcFrom)

	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, from, calcFrom)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if got := result.Loss(plant.LossNotScheduled); got != 2*time.Hour {
		t.Fatalf("expected 2h not scheduled, got %s", got)
	}
}

func TestNoRecordsProducesEmptyAggregate(t *testing.T) {
	f := newCalcFixture(t)
	result, err := f.calculator.CalculateLoss(context.Background(), f.equipment, f.material, calcFrom, calcFrom.Add(time.Hour))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if _, _, ok := result.Window(); ok {
		t.Fatal("expected no observed window")
	}
	if len(result.Records()) != 0 {
		t.Fatalf("expected no records, got %d", len(result.Records()))
	}
}
