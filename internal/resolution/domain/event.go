package resolution

import (
	"fmt"
	"time"

	"oee-platform/internal/plant"
	"oee-platform/internal/uom"
)

// Event is the result of resolving one raw reading: classified, stamped and
// enriched with the equipment's running material/job state. It is built once
// per reading and consumed to produce a persisted record.
type Event struct {
	Equipment *plant.Equipment
	Type      Type
	SourceID  string
	Timestamp time.Time

	Input  any
	Output any

	Quantity *uom.Quantity
	Reason   *plant.Reason
	Material *plant.Material
	Job      string
}

func (e *Event) String() string {
	return fmt.Sprintf("event source=%s type=%s equipment=%s at=%s output=%v",
		e.SourceID, e.Type, e.Equipment.Name, e.Timestamp.Format(time.RFC3339), e.Output)
}

// AsString coerces a script result to a string.
func AsString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %v (%T) is not a string", ErrBadResultType, value, value)
	}
	return s, nil
}

// AsNumber coerces an integer or floating scalar script result to a float64.
// Anything else, including numeric strings, is rejected.
func AsNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %v (%T) is not a number", ErrBadResultType, value, value)
	}
}
