package application

import (
	"time"

	resolution "oee-platform/internal/resolution/domain"
)

// EventResolved is published on the bus after a reading was resolved and
// its record (if any) persisted.
type EventResolved struct {
	SourceID      string
	EquipmentName string
	Type          resolution.Type
	Timestamp     time.Time
	Output        any
	RecordID      int64 // zero when the event type produces no record
}
