package queue

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// NewJobQueue returns the queue selected by importer.queue.mode. A local
// queue is started and stopped with the application.
func NewJobQueue(lc fx.Lifecycle, cfg *config.Config, handler port.TaskHandler) port.JobQueue {
	if cfg.Importer.Queue.Mode == "inline" {
		logger.Infof("Using inline job queue.")
		return NewInlineQueue(handler)
	}
	q := NewLocalQueue(handler, cfg.Importer.Queue, cfg.Importer.Batch.Queue)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return q.Start()
		},
		OnStop: func(ctx context.Context) error {
			return q.Stop(ctx)
		},
	})
	return q
}

// Module provides port.JobQueue. It requires a port.TaskHandler.
var Module = fx.Options(
	fx.Provide(NewJobQueue),
)
