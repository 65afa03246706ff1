package notification

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
)

// MultiPublisher delivers every event to all of its publishers. A failing
// publisher does not prevent delivery to the others.
type MultiPublisher struct {
	publishers []port.EventPublisher
}

// NewMultiPublisher creates a MultiPublisher.
func NewMultiPublisher(publishers ...port.EventPublisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

func (m *MultiPublisher) PublishProgress(ctx context.Context, event model.ProgressEvent) error {
	var result *multierror.Error
	for _, p := range m.publishers {
		if err := p.PublishProgress(ctx, event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (m *MultiPublisher) PublishRefresh(ctx context.Context, event model.RefreshEvent) error {
	var result *multierror.Error
	for _, p := range m.publishers {
		if err := p.PublishRefresh(ctx, event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ port.EventPublisher = (*MultiPublisher)(nil)
