package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	usecase "github.com/tigerroll/surfin-import/pkg/importer/core/application/usecase"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/notification"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// importRequest is the job described on the command line.
type importRequest struct {
	File       string
	SheetURL   string
	Schema     string
	ImportType string
	Submit     bool
	BatchSize  int
	LogOut     string
	ErroredOut string
}

const (
	pollingInterval = 2 * time.Second
	// drainInterval and drainTimeout bound the wait for the last batch task
	// after the job status turned terminal.
	drainInterval = 100 * time.Millisecond
	drainTimeout  = time.Minute
)

// startImport is invoked by Fx to create and start the job once the application has started.
func startImport(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	operator usecase.JobOperator,
	explorer usecase.JobExplorer,
	queue port.JobQueue,
	broker *notification.Broker,
	req importRequest,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go runImport(appCtx, shutdowner, operator, explorer, queue, broker, req)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Importer is shutting down.")
			return nil
		},
	})
}

func runImport(
	appCtx context.Context,
	shutdowner fx.Shutdowner,
	operator usecase.JobOperator,
	explorer usecase.JobExplorer,
	queue port.JobQueue,
	broker *notification.Broker,
	req importRequest,
) {
	exitCode := 0
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic recovered in import: %v", r)
			exitCode = 1
		}
		logger.Infof("Requesting application shutdown after import completion.")
		if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
			logger.Errorf("Failed to shutdown application: %v", err)
		}
	}()

	importType, err := model.ParseImportType(req.ImportType)
	if err != nil {
		logger.Errorf("Invalid import type: %v", err)
		exitCode = 2
		return
	}
	job := model.NewImportJob(req.Schema, importType)
	job.ImportFile = req.File
	job.GoogleSheetsURL = req.SheetURL
	job.SubmitAfterImport = req.Submit

	// Background contexts keep the job operations alive after a signal cancels appCtx.
	ctx := context.Background()
	if err := operator.Create(ctx, job); err != nil {
		logger.Errorf("Failed to create import job: %v", err)
		exitCode = 1
		return
	}

	events, unsubscribe := broker.Subscribe(job.ID)
	defer unsubscribe()

	// The inline queue runs the whole chain inside Start, so the watcher must
	// be running before Start is called.
	finished := make(chan struct{})
	closeFinished := sync.OnceFunc(func() { close(finished) })
	defer closeFinished()
	go stopOnCancel(appCtx, operator, job.ID, finished)

	started, err := operator.Start(ctx, job.ID, req.BatchSize)
	if err != nil {
		logger.Errorf("Failed to start import job '%s': %v", job.ID, err)
		exitCode = 1
		return
	}
	if !started {
		logger.Warnf("Import job '%s' is already running.", job.ID)
	}
	logger.Infof("Import job '%s' started for schema '%s'.", job.ID, job.ReferenceSchema)

	waitForJob(explorer, job.ID, events)
	if err := waitForChain(ctx, queue, model.JobKey(job.ID), drainInterval, drainTimeout); err != nil {
		logger.Warnf("Import job '%s': %v", job.ID, err)
	}
	closeFinished()

	// The last batch may have finalized the job again since it turned terminal.
	status, err := explorer.GetImportStatus(ctx, job.ID)
	if err != nil {
		logger.Errorf("Failed to fetch status of import job '%s': %v", job.ID, err)
		exitCode = 1
		return
	}
	logger.Infof("Import job '%s' finished with status %s: %d succeeded, %d failed of %d.",
		job.ID, status.Status, status.SuccessCount, status.FailureCount, status.TotalRecords)

	if err := writeReports(ctx, explorer, job.ID, req); err != nil {
		logger.Errorf("Failed to write reports of job '%s': %v", job.ID, err)
		exitCode = 1
		return
	}
	if status.Status != model.StatusSuccess {
		exitCode = 1
	}
}

// stopOnCancel stops the job when appCtx is cancelled before finished is closed.
func stopOnCancel(appCtx context.Context, operator usecase.JobOperator, jobID string, finished <-chan struct{}) {
	select {
	case <-finished:
	case <-appCtx.Done():
		logger.Warnf("Stopping import job '%s'.", jobID)
		if err := operator.Stop(context.Background(), jobID); err != nil {
			logger.Errorf("Failed to stop import job '%s': %v", jobID, err)
		}
	}
}

// waitForJob returns once the job is terminal.
func waitForJob(
	explorer usecase.JobExplorer,
	jobID string,
	events <-chan notification.Message,
) usecase.ImportStatus {
	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if msg.Progress != nil && msg.Progress.Total > 0 {
				logger.Infof("Import job '%s': %d/%d units processed.", jobID, msg.Progress.Current, msg.Progress.Total)
			}
		case <-ticker.C:
		}

		status, err := explorer.GetImportStatus(context.Background(), jobID)
		if err != nil {
			logger.Errorf("Failed to fetch status of import job '%s': %v", jobID, err)
			continue
		}
		if status.Status.IsTerminal() {
			return status
		}
		logger.Debugf("Import job '%s' is still running. Current status: %s", jobID, status.Status)
	}
}

// waitForChain returns once no batch task of jobKey is pending or running.
// Stop writes Stopped before the running batch has logged its last unit.
func waitForChain(ctx context.Context, queue port.JobQueue, jobKey string, interval, timeout time.Duration) error {
	if !queue.IsEnqueued(jobKey) {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("batch chain '%s' still running after %s", jobKey, timeout)
		case <-ticker.C:
			if !queue.IsEnqueued(jobKey) {
				return nil
			}
		}
	}
}

func writeReports(ctx context.Context, explorer usecase.JobExplorer, jobID string, req importRequest) error {
	if req.LogOut != "" {
		f, err := os.Create(req.LogOut)
		if err != nil {
			return err
		}
		contentType, err := explorer.DownloadImportLog(ctx, jobID, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		logger.Infof("Import log written to %s (%s).", req.LogOut, contentType)
	}
	if req.ErroredOut != "" {
		f, err := os.Create(req.ErroredOut)
		if err != nil {
			return err
		}
		err = explorer.ExportErroredRows(ctx, jobID, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		logger.Infof("Errored rows written to %s.", req.ErroredOut)
	}
	return nil
}
