package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	_ "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm/mysql"
	_ "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm/postgres"
	_ "github.com/tigerroll/surfin-import/pkg/importer/adapter/database/gorm/sqlite"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// parseFlags reads the import request from the command line.
func parseFlags(args []string) (importRequest, error) {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	var req importRequest
	fs.StringVar(&req.File, "file", "", "CSV file to import (local path or gs://bucket/object)")
	fs.StringVar(&req.SheetURL, "sheet", "", "public Google Sheets URL to import")
	fs.StringVar(&req.Schema, "schema", "", "reference schema the records are written to")
	fs.StringVar(&req.ImportType, "type", "insert", `import type: "insert" or "update"`)
	fs.BoolVar(&req.Submit, "submit", false, "submit records after import")
	fs.IntVar(&req.BatchSize, "batch-size", 0, "units per batch task (0 uses the configured default)")
	fs.StringVar(&req.LogOut, "log-out", "", "write the import log report to this path when the job ends")
	fs.StringVar(&req.ErroredOut, "errored-out", "", "write the source rows of failed units to this CSV path when the job ends")
	if err := fs.Parse(args); err != nil {
		return req, err
	}
	if req.Schema == "" {
		return req, fmt.Errorf("-schema is required")
	}
	if req.File == "" && req.SheetURL == "" {
		return req, fmt.Errorf("one of -file or -sheet is required")
	}
	return req, nil
}

// main is the entry point of the application.
func main() {
	req, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g., Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the import...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	fxApp := fx.New(GetApplicationOptions(ctx, envFilePath, embeddedConfig, req)...)
	fxApp.Run()
	if fxApp.Err() != nil {
		logger.Fatalf("Application run failed: %v", fxApp.Err())
	}
	os.Exit(0)
}
