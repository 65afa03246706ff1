package model

// Checkpoint is the per-job progress record kept in the cache between batch tasks.
// The stop flag is stored under its own key so that Stop never races a
// checkpoint rewrite.
type Checkpoint struct {
	Initialized    bool `json:"initialized"`
	TotalUnits     int  `json:"total_units"`
	BatchSize      int  `json:"batch_size"`
	ProcessedCount int  `json:"processed_count"`
	TotalBatches   int  `json:"total_batches"`
}

// NewCheckpoint creates an initialized checkpoint for total units processed batchSize at a time.
func NewCheckpoint(total, batchSize int) *Checkpoint {
	return &Checkpoint{
		Initialized:  true,
		TotalUnits:   total,
		BatchSize:    batchSize,
		TotalBatches: TotalBatches(total, batchSize),
	}
}

// Done reports whether every unit has been processed.
func (c *Checkpoint) Done() bool {
	return c.ProcessedCount >= c.TotalUnits
}

// TotalBatches returns ceil(total / batchSize).
func TotalBatches(total, batchSize int) int {
	if batchSize <= 0 || total <= 0 {
		return 0
	}
	return (total + batchSize - 1) / batchSize
}

// BatchIndex returns the 1-based index of the batch starting at offset.
func BatchIndex(offset, batchSize int) int {
	if batchSize <= 0 {
		return 1
	}
	return offset/batchSize + 1
}
