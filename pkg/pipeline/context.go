package pipeline

import (
	"time"

	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/google/uuid"
)

const runDateLayout = "2006-01-02"

// RunContext identifies one run of one dataset. It is created once when the
// run is triggered and never modified.
type RunContext struct {
	RunID   string
	Dataset string
	// RunDate is the UTC calendar day of the interval end
	RunDate time.Time
	Table   naming.Table
}

// NewRunContext derives the run date from an interval end timestamp by
// converting it to UTC and truncating it to the day
func NewRunContext(dataset, table string, intervalEnd time.Time) RunContext {
	utc := intervalEnd.UTC()

	if table == "" {
		table = dataset
	}

	return RunContext{
		RunID:   uuid.NewString(),
		Dataset: dataset,
		RunDate: time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC),
		Table:   naming.ResolveMirrorTable(table),
	}
}

// FormattedRunDate returns the run date as YYYY-MM-DD
func (r RunContext) FormattedRunDate() string {
	return r.RunDate.Format(runDateLayout)
}
