package history

import (
	"context"
	"errors"
	"time"
)

// ErrNilRecord is returned when saving a nil record.
var ErrNilRecord = errors.New("history: nil record")

// RecordRepository persists and replays event history. The fetch operations
// return records overlapping [from, to]; availability records come back
// ascending by start time, which downstream interval clipping depends on.
type RecordRepository interface {
	ProductionRecords(ctx context.Context, equipmentName string, from, to time.Time) ([]*Record, error)
	AvailabilityRecords(ctx context.Context, equipmentName string, from, to time.Time) ([]*Record, error)
	Save(ctx context.Context, record *Record) error
}
