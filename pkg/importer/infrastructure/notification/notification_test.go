package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/infrastructure/notification"
)

func TestKafkaPublisher_SendsEnvelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, notification.NewSaramaConfig("test"))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got struct {
			Event string              `json:"event"`
			Data  model.ProgressEvent `json:"data"`
		}
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.Event != model.EventProgress || got.Data.JobID != "job-1" || got.Data.Current != 25 {
			return errors.New("unexpected progress payload: " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "job-1" || msg.Topic != "data_import_events" {
			return errors.New("unexpected key or topic")
		}
		return nil
	})

	p := notification.NewKafkaPublisher(producer, "data_import_events")
	ctx := context.Background()
	require.NoError(t, p.PublishProgress(ctx, model.ProgressEvent{JobID: "job-1", Current: 25, Total: 100}))
	require.NoError(t, p.PublishRefresh(ctx, model.RefreshEvent{JobID: "job-1", Status: model.StatusSuccess}))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, notification.NewSaramaConfig("test"))
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := notification.NewKafkaPublisher(producer, "data_import_events")
	err := p.PublishRefresh(context.Background(), model.RefreshEvent{JobID: "job-1", Status: model.StatusError})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestBroker_FiltersByJob(t *testing.T) {
	b := notification.NewBroker(4)
	all, cancelAll := b.Subscribe("")
	one, cancelOne := b.Subscribe("job-2")
	defer cancelAll()

	ctx := context.Background()
	require.NoError(t, b.PublishProgress(ctx, model.ProgressEvent{JobID: "job-1", Current: 1}))
	require.NoError(t, b.PublishRefresh(ctx, model.RefreshEvent{JobID: "job-2", Status: model.StatusStopped}))

	first := <-all
	assert.Equal(t, model.EventProgress, first.Event)
	assert.Equal(t, 1, first.Progress.Current)
	second := <-all
	assert.Equal(t, model.EventRefresh, second.Event)

	msg := <-one
	assert.Equal(t, "job-2", msg.JobID)
	assert.Equal(t, model.StatusStopped, msg.Refresh.Status)

	cancelOne()
	cancelOne()
	_, open := <-one
	assert.False(t, open)
}

func TestBroker_DropsWhenFull(t *testing.T) {
	b := notification.NewBroker(1)
	ch, cancel := b.Subscribe("")
	defer cancel()

	ctx := context.Background()
	require.NoError(t, b.PublishProgress(ctx, model.ProgressEvent{JobID: "job-1", Current: 1}))
	require.NoError(t, b.PublishProgress(ctx, model.ProgressEvent{JobID: "job-1", Current: 2}))

	msg := <-ch
	assert.Equal(t, 1, msg.Progress.Current)
	assert.Len(t, ch, 0)
}

type failingPublisher struct{ err error }

func (f failingPublisher) PublishProgress(ctx context.Context, e model.ProgressEvent) error { return f.err }
func (f failingPublisher) PublishRefresh(ctx context.Context, e model.RefreshEvent) error { return f.err }

func TestMultiPublisher_DeliversDespiteFailures(t *testing.T) {
	errDown := errors.New("backend down")
	b := notification.NewBroker(2)
	ch, cancel := b.Subscribe("")
	defer cancel()

	m := notification.NewMultiPublisher(failingPublisher{errDown}, notification.NewLogPublisher(), b)
	err := m.PublishRefresh(context.Background(), model.RefreshEvent{JobID: "job-1", Status: model.StatusSuccess})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDown)

	msg := <-ch
	assert.Equal(t, model.StatusSuccess, msg.Refresh.Status)

	assert.NoError(t, notification.NewMultiPublisher().PublishProgress(context.Background(), model.ProgressEvent{}))
}
