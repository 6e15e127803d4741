package plant

// TimeLoss is one bucket of the fixed taxonomy every unit of elapsed time is
// decomposed into. Scheduled time reconciles to the sum of all buckets plus
// true productive time.
type TimeLoss string

const (
	LossNone              TimeLoss = "NO_LOSS"
	LossNotScheduled      TimeLoss = "NOT_SCHEDULED"
	LossUnscheduled       TimeLoss = "UNSCHEDULED"
	LossPlannedDowntime   TimeLoss = "PLANNED_DOWNTIME"
	LossSetup             TimeLoss = "SETUP"
	LossUnplannedDowntime TimeLoss = "UNPLANNED_DOWNTIME"
	LossMinorStoppages    TimeLoss = "MINOR_STOPPAGES"
	LossReducedSpeed      TimeLoss = "REDUCED_SPEED"
	LossRejectRework      TimeLoss = "REJECT_REWORK"
	LossStartupYield      TimeLoss = "STARTUP_YIELD"
)

// IsValid checks membership in the taxonomy.
func (t TimeLoss) IsValid() bool {
	switch t {
	case LossNone, LossNotScheduled, LossUnscheduled, LossPlannedDowntime, LossSetup,
		LossUnplannedDowntime, LossMinorStoppages, LossReducedSpeed, LossRejectRework, LossStartupYield:
		return true
	default:
		return false
	}
}

// IsAvailability reports whether the category is attributed through downtime
// reasons rather than derived from production quantities.
func (t TimeLoss) IsAvailability() bool {
	switch t {
	case LossUnscheduled, LossPlannedDowntime, LossSetup, LossUnplannedDowntime, LossMinorStoppages:
		return true
	default:
		return false
	}
}

// AvailabilityLosses lists the reason-attributed categories.
func AvailabilityLosses() []TimeLoss {
	return []TimeLoss{LossUnscheduled, LossPlannedDowntime, LossSetup, LossUnplannedDowntime, LossMinorStoppages}
}
