package loss

import (
	"errors"
	"testing"
	"time"

	"oee-platform/internal/plant"
	"oee-platform/internal/uom"
)

func testAggregate(t *testing.T) *EquipmentLoss {
	t.Helper()
	equipment, err := plant.NewEquipment("line-1", nil)
	if err != nil {
		t.Fatalf("new equipment: %v", err)
	}
	aggregate, err := NewEquipmentLoss(equipment, &plant.Material{Name: "BTL-500"})
	if err != nil {
		t.Fatalf("new equipment loss: %v", err)
	}
	return aggregate
}

func eachUnit(t *testing.T) *uom.Unit {
	t.Helper()
	unit, err := uom.DefaultRegistry().Find("ea")
	if err != nil {
		t.Fatalf("find unit: %v", err)
	}
	return unit
}

func TestExtendWindowWidensBothEdges(t *testing.T) {
	aggregate := testAggregate(t)
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	aggregate.ExtendWindow(base, base.Add(time.Hour))
	aggregate.ExtendWindow(base.Add(-time.Hour), base.Add(30*time.Minute))
	aggregate.ExtendWindow(base.Add(2*time.Hour), base.Add(3*time.Hour))

	start, end, ok := aggregate.Window()
	if !ok {
		t.Fatal("expected a window")
	}
	if !start.Equal(base.Add(-time.Hour)) || !end.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("unexpected window [%s, %s]", start, end)
	}
	if aggregate.ObservedDuration() != 4*time.Hour {
		t.Fatalf("expected 4h observed, got %s", aggregate.ObservedDuration())
	}
}

func TestConvertToLostTime(t *testing.T) {
	aggregate := testAggregate(t)
	if err := aggregate.SetDesignSpeed(uom.NewQuantity(5, eachUnit(t))); err != nil {
		t.Fatalf("set design speed: %v", err)
	}

	lost, err := aggregate.ConvertToLostTime(uom.NewQuantity(10, eachUnit(t)))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if lost != 2*time.Hour {
		t.Fatalf("expected 2h, got %s", lost)
	}
}

func TestConvertToLostTimeNeedsDesignSpeed(t *testing.T) {
	aggregate := testAggregate(t)
	_, err := aggregate.ConvertToLostTime(uom.NewQuantity(10, eachUnit(t)))
	if !errors.Is(err, ErrNoDesignSpeed) {
		t.Fatalf("expected ErrNoDesignSpeed, got %v", err)
	}
}

func TestIncrementLossFloorsNegativeAndIgnoresNilReason(t *testing.T) {
	aggregate := testAggregate(t)
	jam := &plant.Reason{Name: "JAM", LossCategory: plant.LossUnplannedDowntime}

	aggregate.IncrementLoss(nil, time.Hour)
	aggregate.IncrementLoss(jam, -time.Hour)
	aggregate.IncrementLoss(jam, 30*time.Minute)

	if got := aggregate.Loss(plant.LossUnplannedDowntime); got != 30*time.Minute {
		t.Fatalf("expected 30m, got %s", got)
	}
}

func TestReducedSpeedRequiresWindow(t *testing.T) {
	aggregate := testAggregate(t)
	if err := aggregate.SetDesignSpeed(uom.NewQuantity(5, eachUnit(t))); err != nil {
		t.Fatalf("set design speed: %v", err)
	}
	if err := aggregate.CalculateReducedSpeedLoss(); !errors.Is(err, ErrNoWindow) {
		t.Fatalf("expected ErrNoWindow, got %v", err)
	}
}

func TestReducedSpeedFlooredAtZero(t *testing.T) {
	aggregate := testAggregate(t)
	if err := aggregate.SetDesignSpeed(uom.NewQuantity(5, eachUnit(t))); err != nil {
		t.Fatalf("set design speed: %v", err)
	}
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	aggregate.ExtendWindow(base, base.Add(time.Hour))
	// 10 units need 2 hours at design speed; the window is only 1 hour.
	if err := aggregate.IncrementGood(uom.NewQuantity(10, eachUnit(t))); err != nil {
		t.Fatalf("increment good: %v", err)
	}

	if err := aggregate.CalculateReducedSpeedLoss(); err != nil {
		t.Fatalf("reduced speed: %v", err)
	}
	if got := aggregate.Loss(plant.LossReducedSpeed); got != 0 {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestOEEComponents(t *testing.T) {
	aggregate := testAggregate(t)
	if err := aggregate.SetDesignSpeed(uom.NewQuantity(10, eachUnit(t))); err != nil {
		t.Fatalf("set design speed: %v", err)
	}
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	aggregate.ExtendWindow(base, base.Add(10*time.Hour))

	// 10h observed: 2h not scheduled, 2h downtime, 2h reduced speed,
	// 1h reject. Scheduled 8h -> A=6/8, P=4/6, Q=3/4, OEE=3/8.
	aggregate.SetLoss(plant.LossNotScheduled, 2*time.Hour)
	aggregate.AddLoss(plant.LossUnplannedDowntime, 2*time.Hour)
	aggregate.SetLoss(plant.LossReducedSpeed, 2*time.Hour)
	aggregate.AddLoss(plant.LossRejectRework, time.Hour)

	approx := func(got, want float64) bool {
		diff := got - want
		return diff < 1e-9 && diff > -1e-9
	}
	if !approx(aggregate.Availability(), 0.75) {
		t.Fatalf("availability = %v", aggregate.Availability())
	}
	if !approx(aggregate.Performance(), 4.0/6.0) {
		t.Fatalf("performance = %v", aggregate.Performance())
	}
	if !approx(aggregate.Quality(), 0.75) {
		t.Fatalf("quality = %v", aggregate.Quality())
	}
	if !approx(aggregate.OEE(), 0.375) {
		t.Fatalf("oee = %v", aggregate.OEE())
	}
}

func TestParetoDataEmitsReasonBuckets(t *testing.T) {
	aggregate := testAggregate(t)
	jam := &plant.Reason{Name: "JAM", LossCategory: plant.LossUnplannedDowntime}
	fault := &plant.Reason{Name: "FAULT", LossCategory: plant.LossUnplannedDowntime}
	aggregate.IncrementLoss(jam, time.Hour)
	aggregate.IncrementLoss(fault, 30*time.Minute)
	aggregate.IncrementLoss(jam, time.Hour)

	items := ParetoData(aggregate, plant.LossUnplannedDowntime)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	byLabel := map[string]time.Duration{}
	for _, item := range items {
		byLabel[item.Label] = item.Lost
	}
	if byLabel["JAM"] != 2*time.Hour || byLabel["FAULT"] != 30*time.Minute {
		t.Fatalf("unexpected buckets %v", byLabel)
	}
}
