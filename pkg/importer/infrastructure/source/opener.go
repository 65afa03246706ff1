// Package source opens the locations import jobs read from: local files,
// Cloud Storage objects (gs://bucket/object) and public Google Sheets.
package source

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

const moduleName = "source"

// Opener implements port.SourceOpener. The Cloud Storage client is created on first use.
type Opener struct {
	baseDir    string
	httpClient *http.Client
	retry      RetryPolicy
	gcsOptions []option.ClientOption

	gcsOnce   sync.Once
	gcsClient *storage.Client
	gcsErr    error
}

// NewOpener creates an Opener. A nil httpClient gets one with the timeout of cfg.
func NewOpener(cfg config.SourcesConfig, httpClient *http.Client) *Opener {
	if httpClient == nil {
		timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var opts []option.ClientOption
	if cfg.GCSEndpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.GCSEndpoint))
	}
	if cfg.GCSWithoutAuth {
		opts = append(opts, option.WithoutAuthentication())
	}
	return &Opener{
		baseDir:    cfg.BaseDir,
		httpClient: httpClient,
		retry:      NewDownloadRetryPolicy(cfg.DownloadMaxAttempts, time.Duration(cfg.DownloadBackoffMillis)*time.Millisecond),
		gcsOptions: opts,
	}
}

// Open returns a reader over the content at location.
func (o *Opener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	switch {
	case location == "":
		return nil, exception.NewImportError(moduleName, "no location given", exception.ErrNoImportSource)
	case strings.HasPrefix(location, "gs://"):
		return o.openObject(ctx, location)
	case strings.HasPrefix(location, "https://") || strings.HasPrefix(location, "http://"):
		return o.openSheet(ctx, location)
	default:
		return o.openFile(strings.TrimPrefix(location, "file://"))
	}
}

func (o *Opener) openFile(path string) (io.ReadCloser, error) {
	if !filepath.IsAbs(path) && o.baseDir != "" {
		path = filepath.Join(o.baseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, exception.NewImportError(moduleName, fmt.Sprintf("failed to open import file '%s'", path), err)
	}
	logger.Debugf("Source: opened local file '%s'.", path)
	return f, nil
}

func (o *Opener) openObject(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, object, err := splitObjectLocation(location)
	if err != nil {
		return nil, err
	}
	o.gcsOnce.Do(func() {
		o.gcsClient, o.gcsErr = storage.NewClient(context.WithoutCancel(ctx), o.gcsOptions...)
	})
	if o.gcsErr != nil {
		return nil, exception.NewImportError(moduleName, "failed to create cloud storage client", o.gcsErr)
	}
	r, err := o.gcsClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, exception.NewImportError(moduleName, fmt.Sprintf("failed to read '%s'", location), err)
	}
	logger.Debugf("Source: reading gs://%s/%s (%d bytes).", bucket, object, r.Attrs.Size)
	return r, nil
}

// openSheet downloads the CSV export of a public Google Sheet. Private sheets
// answer with an HTML sign-in page, which is rejected.
func (o *Opener) openSheet(ctx context.Context, location string) (io.ReadCloser, error) {
	exportURL, err := model.GoogleSheetsExportURL(location)
	if err != nil {
		return nil, exception.NewImportError(moduleName, err.Error(), exception.ErrInvalidSheetsURL)
	}
	for attempt := 1; ; attempt++ {
		body, err := o.downloadSheet(ctx, exportURL)
		if err == nil {
			logger.Debugf("Source: downloading %s.", exportURL)
			return body, nil
		}
		if attempt >= o.retry.MaxAttempts() || !o.retry.ShouldRetry(err) {
			return nil, exception.NewImportError(moduleName, "failed to download google sheet", err)
		}
		wait := o.retry.BackoffInterval(attempt)
		logger.Warnf("Source: download of %s failed (attempt %d/%d), retrying in %v: %v", exportURL, attempt, o.retry.MaxAttempts(), wait, err)
		select {
		case <-ctx.Done():
			return nil, exception.NewImportError(moduleName, "google sheet download interrupted", ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (o *Opener) downloadSheet(ctx context.Context, exportURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		resp.Body.Close()
		return nil, exception.NewImportError(moduleName, "Google Sheets URL must be publicly accessible", exception.ErrInvalidSheetsURL)
	}
	return resp.Body, nil
}

// Close releases the Cloud Storage client, if one was created.
func (o *Opener) Close() error {
	if o.gcsClient != nil {
		return o.gcsClient.Close()
	}
	return nil
}

func splitObjectLocation(location string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(location, "gs://")
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", exception.NewImportErrorf(moduleName, "invalid cloud storage location '%s', expected gs://bucket/object", location)
	}
	return bucket, object, nil
}

var _ port.SourceOpener = (*Opener)(nil)
