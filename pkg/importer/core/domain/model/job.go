// Package model defines the domain types of the batch importer: import jobs,
// import units, checkpoints, import log entries and the events emitted while a
// job runs.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle status of an ImportJob.
type JobStatus string

const (
	StatusPending        JobStatus = "Pending"
	StatusPreprocessing  JobStatus = "Preprocessing"
	StatusRunning        JobStatus = "Running"
	StatusSuccess        JobStatus = "Success"
	StatusPartialSuccess JobStatus = "Partial Success"
	StatusError          JobStatus = "Error"
	StatusTimedOut       JobStatus = "Timed Out"
	StatusStopped        JobStatus = "Stopped"
)

// String returns the status as displayed to users.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further batch will run for a job in this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusPartialSuccess, StatusError, StatusTimedOut, StatusStopped:
		return true
	}
	return false
}

// IsActive reports whether a batch chain is (or is about to be) executing.
func (s JobStatus) IsActive() bool {
	return s == StatusPreprocessing || s == StatusRunning
}

// ParseJobStatus converts a stored status string back into a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch status := JobStatus(s); status {
	case StatusPending, StatusPreprocessing, StatusRunning, StatusSuccess,
		StatusPartialSuccess, StatusError, StatusTimedOut, StatusStopped:
		return status, nil
	}
	return "", fmt.Errorf("unknown job status: %q", s)
}

// ImportType selects whether units create new records or update existing ones.
type ImportType string

const (
	ImportTypeInsert ImportType = "Insert New Records"
	ImportTypeUpdate ImportType = "Update Existing Records"
)

// ParseImportType accepts the display names as well as the short forms "insert" and "update".
func ParseImportType(s string) (ImportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "insert", strings.ToLower(string(ImportTypeInsert)):
		return ImportTypeInsert, nil
	case "update", strings.ToLower(string(ImportTypeUpdate)):
		return ImportTypeUpdate, nil
	}
	return "", fmt.Errorf("unknown import type: %q", s)
}

// ImportJob is a user-visible import request.
type ImportJob struct {
	ID                string
	ReferenceSchema   string
	ImportType        ImportType
	ImportFile        string
	GoogleSheetsURL   string
	SubmitAfterImport bool
	// TotalUnits is nil until the count pass of the first batch has run.
	TotalUnits  *int
	Status      JobStatus
	CreateTime  time.Time
	LastUpdated time.Time
}

// NewImportJob creates a Pending job with a generated ID.
func NewImportJob(referenceSchema string, importType ImportType) *ImportJob {
	now := time.Now()
	return &ImportJob{
		ID:              uuid.NewString(),
		ReferenceSchema: referenceSchema,
		ImportType:      importType,
		Status:          StatusPending,
		CreateTime:      now,
		LastUpdated:     now,
	}
}

// Source returns the location units are parsed from. An uploaded file takes
// precedence over a Google Sheets URL.
func (j *ImportJob) Source() string {
	if j.ImportFile != "" {
		return j.ImportFile
	}
	return j.GoogleSheetsURL
}

// HasSource reports whether the job names a file or a sheet.
func (j *ImportJob) HasSource() bool {
	return j.Source() != ""
}

// Clone returns a copy that shares no mutable state with j.
func (j *ImportJob) Clone() *ImportJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.TotalUnits != nil {
		total := *j.TotalUnits
		c.TotalUnits = &total
	}
	return &c
}

// JobKey is the queue key under which the batch chain of a job runs.
// At most one task per key is pending or running at any time.
func JobKey(jobID string) string {
	return "data_import::" + jobID
}
