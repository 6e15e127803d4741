package loss

import (
	"time"

	"oee-platform/internal/plant"
)

// ParetoItem is one reason's contribution within a loss category. Output
// only; derived from an aggregate's reason breakdown.
type ParetoItem struct {
	Label string
	Lost  time.Duration
}

// ParetoData emits one item per reason in the category's breakdown. The
// order is not sorted; callers needing rank order sort explicitly.
func ParetoData(l *EquipmentLoss, category plant.TimeLoss) []ParetoItem {
	byReason := l.ReasonLosses(category)
	items := make([]ParetoItem, 0, len(byReason))
	for name, d := range byReason {
		items = append(items, ParetoItem{Label: name, Lost: d})
	}
	return items
}
