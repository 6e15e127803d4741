package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	history "oee-platform/internal/history/domain"
	"oee-platform/internal/plant"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func availabilityRecord(equipment string, start time.Time, end *time.Time) *history.Record {
	record := &history.Record{
		Kind:          history.KindAvailability,
		EquipmentName: equipment,
		Start:         start,
		Reason:        &plant.Reason{Name: "JAM", LossCategory: plant.LossUnplannedDowntime},
	}
	record.End = end
	return record
}

func TestSaveRejectsNil(t *testing.T) {
	repo := NewRecordRepository()
	if err := repo.Save(context.Background(), nil); !errors.Is(err, history.ErrNilRecord) {
		t.Fatalf("expected ErrNilRecord, got %v", err)
	}
}

func TestSaveIsIdempotentPerPointer(t *testing.T) {
	repo := NewRecordRepository()
	record := availabilityRecord("line-1", base, nil)
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save again: %v", err)
	}

	records, err := repo.AvailabilityRecords(context.Background(), "line-1", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestFetchFiltersByOverlapAndEquipment(t *testing.T) {
	repo := NewRecordRepository()
	end1 := base.Add(time.Hour)
	endEarly := base.Add(-2 * time.Hour)

	inWindow := availabilityRecord("line-1", base, &end1)
	before := availabilityRecord("line-1", base.Add(-3*time.Hour), &endEarly)
	after := availabilityRecord("line-1", base.Add(10*time.Hour), nil)
	otherLine := availabilityRecord("line-2", base, &end1)
	for _, record := range []*history.Record{inWindow, before, after, otherLine} {
		if err := repo.Save(context.Background(), record); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	records, err := repo.AvailabilityRecords(context.Background(), "line-1", base.Add(-time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 || records[0] != inWindow {
		t.Fatalf("unexpected result %v", records)
	}
}

func TestOpenRecordOverlapsEverythingAfterStart(t *testing.T) {
	repo := NewRecordRepository()
	open := availabilityRecord("line-1", base, nil)
	if err := repo.Save(context.Background(), open); err != nil {
		t.Fatalf("save: %v", err)
	}

	records, err := repo.AvailabilityRecords(context.Background(), "line-1", base.Add(5*time.Hour), base.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected the open record, got %d", len(records))
	}
}

func TestAvailabilityRecordsSortedAscending(t *testing.T) {
	repo := NewRecordRepository()
	later := availabilityRecord("line-1", base.Add(2*time.Hour), nil)
	earlier := availabilityRecord("line-1", base, nil)
	if err := repo.Save(context.Background(), later); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(context.Background(), earlier); err != nil {
		t.Fatalf("save: %v", err)
	}

	records, err := repo.AvailabilityRecords(context.Background(), "line-1", base.Add(-time.Hour), base.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 || records[0] != earlier || records[1] != later {
		t.Fatalf("records not ascending by start: %v", records)
	}
}

func TestKindsAreSeparated(t *testing.T) {
	repo := NewRecordRepository()
	production := &history.Record{
		Kind:          history.KindProduction,
		EquipmentName: "line-1",
		Start:         base,
	}
	if err := repo.Save(context.Background(), production); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(context.Background(), availabilityRecord("line-1", base, nil)); err != nil {
		t.Fatalf("save: %v", err)
	}

	productionRecords, err := repo.ProductionRecords(context.Background(), "line-1", base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(productionRecords) != 1 || productionRecords[0].Kind != history.KindProduction {
		t.Fatalf("unexpected production records %v", productionRecords)
	}
}
