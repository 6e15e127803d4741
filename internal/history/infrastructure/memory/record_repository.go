package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	history "oee-platform/internal/history/domain"
)

// RecordRepository is an in-memory history store for demo and testing.
type RecordRepository struct {
	mu      sync.RWMutex
	records []*history.Record
}

// NewRecordRepository constructs an empty repository.
func NewRecordRepository() *RecordRepository {
	return &RecordRepository{}
}

// Save appends or keeps a record; records are shared by pointer so the
// calculator's lost-time back-fill is visible to later readers.
func (r *RecordRepository) Save(ctx context.Context, record *history.Record) error {
	_ = ctx
	if record == nil {
		return history.ErrNilRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing == record {
			return nil
		}
	}
	r.records = append(r.records, record)
	return nil
}

// ProductionRecords returns production records overlapping [from, to].
func (r *RecordRepository) ProductionRecords(ctx context.Context, equipmentName string, from, to time.Time) ([]*history.Record, error) {
	_ = ctx
	return r.fetch(history.KindProduction, equipmentName, from, to), nil
}

// AvailabilityRecords returns availability records overlapping [from, to],
// ascending by start time.
func (r *RecordRepository) AvailabilityRecords(ctx context.Context, equipmentName string, from, to time.Time) ([]*history.Record, error) {
	_ = ctx
	return r.fetch(history.KindAvailability, equipmentName, from, to), nil
}

func (r *RecordRepository) fetch(kind history.Kind, equipmentName string, from, to time.Time) []*history.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*history.Record
	for _, record := range r.records {
		if record.Kind != kind || record.EquipmentName != equipmentName {
			continue
		}
		if record.Start.After(to) {
			continue
		}
		if record.End != nil && record.End.Before(from) {
			continue
		}
		result = append(result, record)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start)
	})
	return result
}
