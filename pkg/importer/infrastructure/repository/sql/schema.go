package sql

import "time"

// ImportJobEntity is the persistence model of model.ImportJob.
type ImportJobEntity struct {
	ID                string    `gorm:"column:id;primaryKey"`
	ReferenceSchema   string    `gorm:"column:reference_schema"`
	ImportType        string    `gorm:"column:import_type"`
	ImportFile        string    `gorm:"column:import_file"`
	GoogleSheetsURL   string    `gorm:"column:google_sheets_url"`
	SubmitAfterImport bool      `gorm:"column:submit_after_import"`
	TotalUnits        *int      `gorm:"column:total_units"`
	Status            string    `gorm:"column:status"`
	CreateTime        time.Time `gorm:"column:create_time"`
	LastUpdated       time.Time `gorm:"column:last_updated"`
}

func (ImportJobEntity) TableName() string {
	return "import_jobs"
}

// ImportLogEntity is the persistence model of model.ImportLogEntry.
// Messages and RowIndexes are stored as JSON lists.
type ImportLogEntity struct {
	ID         string    `gorm:"column:id;primaryKey"`
	JobID      string    `gorm:"column:job_id"`
	LogIndex   int       `gorm:"column:log_index"`
	Success    bool      `gorm:"column:success"`
	DocName    string    `gorm:"column:doc_name"`
	Messages   string    `gorm:"column:messages"`
	Exception  string    `gorm:"column:exception"`
	RowIndexes string    `gorm:"column:row_indexes"`
	CreateTime time.Time `gorm:"column:create_time"`
}

func (ImportLogEntity) TableName() string {
	return "import_logs"
}
