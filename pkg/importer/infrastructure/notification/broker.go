package notification

import (
	"context"
	"sync"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

// Message is an event as seen by Broker subscribers.
type Message struct {
	// Event is model.EventProgress or model.EventRefresh.
	Event    string
	JobID    string
	Progress *model.ProgressEvent
	Refresh  *model.RefreshEvent
}

// Broker fans events out to in-process subscribers. A subscriber whose buffer
// is full misses the event; publishers never block.
type Broker struct {
	mu          sync.RWMutex
	bufferSize  int
	nextID      int
	subscribers map[int]*subscription
}

type subscription struct {
	jobID string
	ch    chan Message
}

// NewBroker creates a Broker whose subscriptions buffer bufferSize messages.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broker{bufferSize: bufferSize, subscribers: make(map[int]*subscription)}
}

// Subscribe returns a channel receiving the events of jobID, or of every job
// when jobID is empty, and a function that ends the subscription.
func (b *Broker) Subscribe(jobID string) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	sub := &subscription{jobID: jobID, ch: make(chan Message, b.bufferSize)}
	b.subscribers[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(sub.ch)
		})
	}
}

func (b *Broker) PublishProgress(ctx context.Context, event model.ProgressEvent) error {
	b.publish(Message{Event: model.EventProgress, JobID: event.JobID, Progress: &event})
	return nil
}

func (b *Broker) PublishRefresh(ctx context.Context, event model.RefreshEvent) error {
	b.publish(Message{Event: model.EventRefresh, JobID: event.JobID, Refresh: &event})
	return nil
}

func (b *Broker) publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.jobID != "" && sub.jobID != msg.JobID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			logger.Warnf("Notification: subscriber buffer full, dropping %s of job '%s'.", msg.Event, msg.JobID)
		}
	}
}

var _ port.EventPublisher = (*Broker)(nil)
