package model

const (
	// EventProgress is published after each batch and when a job is stopped.
	EventProgress = "data_import_progress"
	// EventRefresh is published when a job reaches a terminal status.
	EventRefresh = "data_import_refresh"
)

// ProgressEvent reports cumulative progress of a running job.
// Status is only set by Stop.
type ProgressEvent struct {
	JobID        string    `json:"data_import"`
	Current      int       `json:"current,omitempty"`
	Total        int       `json:"total,omitempty"`
	BatchIndex   int       `json:"batch_index,omitempty"`
	TotalBatches int       `json:"total_batches,omitempty"`
	Status       JobStatus `json:"status,omitempty"`
}

// RefreshEvent tells listeners to reload the job.
type RefreshEvent struct {
	JobID  string    `json:"data_import"`
	Status JobStatus `json:"status"`
}
