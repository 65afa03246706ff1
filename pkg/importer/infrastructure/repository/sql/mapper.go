package sql

import (
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/serialization"
)

// --- Mapper functions ---

func fromDomainImportJob(job *model.ImportJob) *ImportJobEntity {
	if job == nil {
		return nil
	}
	return &ImportJobEntity{
		ID:                job.ID,
		ReferenceSchema:   job.ReferenceSchema,
		ImportType:        string(job.ImportType),
		ImportFile:        job.ImportFile,
		GoogleSheetsURL:   job.GoogleSheetsURL,
		SubmitAfterImport: job.SubmitAfterImport,
		TotalUnits:        job.Clone().TotalUnits,
		Status:            string(job.Status),
		CreateTime:        job.CreateTime,
		LastUpdated:       job.LastUpdated,
	}
}

func toDomainImportJob(entity *ImportJobEntity) (*model.ImportJob, error) {
	if entity == nil {
		return nil, nil
	}
	status, err := model.ParseJobStatus(entity.Status)
	if err != nil {
		return nil, err
	}
	return &model.ImportJob{
		ID:                entity.ID,
		ReferenceSchema:   entity.ReferenceSchema,
		ImportType:        model.ImportType(entity.ImportType),
		ImportFile:        entity.ImportFile,
		GoogleSheetsURL:   entity.GoogleSheetsURL,
		SubmitAfterImport: entity.SubmitAfterImport,
		TotalUnits:        entity.TotalUnits,
		Status:            status,
		CreateTime:        entity.CreateTime,
		LastUpdated:       entity.LastUpdated,
	}, nil
}

func fromDomainImportLogEntry(entry *model.ImportLogEntry) (*ImportLogEntity, error) {
	messages, err := serialization.MarshalStrings(entry.Messages)
	if err != nil {
		return nil, err
	}
	rows, err := serialization.MarshalInts(entry.RowIndexes)
	if err != nil {
		return nil, err
	}
	return &ImportLogEntity{
		ID:         entry.ID,
		JobID:      entry.JobID,
		LogIndex:   entry.LogIndex,
		Success:    entry.Success,
		DocName:    entry.DocName,
		Messages:   messages,
		Exception:  entry.Exception,
		RowIndexes: rows,
		CreateTime: entry.CreateTime,
	}, nil
}

func toDomainImportLogEntry(entity *ImportLogEntity) (*model.ImportLogEntry, error) {
	messages, err := serialization.UnmarshalStrings(entity.Messages)
	if err != nil {
		return nil, err
	}
	rows, err := serialization.UnmarshalInts(entity.RowIndexes)
	if err != nil {
		return nil, err
	}
	return &model.ImportLogEntry{
		ID:         entity.ID,
		JobID:      entity.JobID,
		LogIndex:   entity.LogIndex,
		Success:    entity.Success,
		DocName:    entity.DocName,
		Messages:   messages,
		Exception:  entity.Exception,
		RowIndexes: rows,
		CreateTime: entity.CreateTime,
	}, nil
}
