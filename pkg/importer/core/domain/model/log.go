package model

import "time"

// ImportLogEntry records the outcome of one unit, or of a task-level failure
// (in which case RowIndexes is empty).
type ImportLogEntry struct {
	ID         string
	JobID      string
	LogIndex   int
	Success    bool
	DocName    string
	Messages   []string
	Exception  string
	RowIndexes []int
	CreateTime time.Time
}

// LogCounts aggregates the entries of one job.
type LogCounts struct {
	Successes int
	Failures  int
}

// Total is the number of entries counted.
func (c LogCounts) Total() int {
	return c.Successes + c.Failures
}

// Add counts one entry.
func (c *LogCounts) Add(success bool) {
	if success {
		c.Successes++
	} else {
		c.Failures++
	}
}
