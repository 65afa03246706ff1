// Package notification delivers progress and refresh events of import jobs:
// to the log, to in-process subscribers and to Kafka.
package notification

import (
	"context"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// LogPublisher only logs events.
type LogPublisher struct{}

// NewLogPublisher creates a new instance of LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) PublishProgress(ctx context.Context, event model.ProgressEvent) error {
	if event.Status != "" {
		logger.Infof("Notification: Job '%s' is now %s.", event.JobID, event.Status)
		return nil
	}
	logger.Debugf("Notification: Job '%s' progress %d/%d (batch %d/%d).",
		event.JobID, event.Current, event.Total, event.BatchIndex, event.TotalBatches)
	return nil
}

func (p *LogPublisher) PublishRefresh(ctx context.Context, event model.RefreshEvent) error {
	message := "Notification: Job '%s' finished with status '%s'."
	if event.Status == model.StatusSuccess {
		logger.Infof(message, event.JobID, event.Status)
	} else {
		logger.Warnf(message, event.JobID, event.Status)
	}
	return nil
}

var _ port.EventPublisher = (*LogPublisher)(nil)
