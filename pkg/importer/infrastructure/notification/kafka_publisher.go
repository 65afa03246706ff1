package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/core/domain/model"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/serialization"
)

// envelope is the Kafka message value.
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// KafkaPublisher publishes events to a Kafka topic, keyed by job ID so that the
// events of one job stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher wraps an existing producer.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// NewSaramaConfig returns the producer configuration used by the publisher.
func NewSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Version = sarama.V3_6_0_0
	return cfg
}

// DialKafkaPublisher connects a sync producer to the brokers of cfg.
func DialKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	brokers := splitList(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, exception.NewImportError("notification", "kafka backend selected but no brokers configured", nil)
	}
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig(cfg.ClientID))
	if err != nil {
		return nil, exception.NewImportError("notification", "failed to create kafka producer", err)
	}
	logger.Infof("Notification: publishing to Kafka topic '%s' on %v.", cfg.Topic, brokers)
	return NewKafkaPublisher(producer, cfg.Topic), nil
}

func (p *KafkaPublisher) PublishProgress(ctx context.Context, event model.ProgressEvent) error {
	return p.send(ctx, event.JobID, envelope{Event: model.EventProgress, Data: event})
}

func (p *KafkaPublisher) PublishRefresh(ctx context.Context, event model.RefreshEvent) error {
	return p.send(ctx, event.JobID, envelope{Event: model.EventRefresh, Data: event})
}

func (p *KafkaPublisher) send(ctx context.Context, key string, env envelope) error {
	value, err := serialization.Marshal(env.Event, env)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg})

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s to kafka topic %s: %w", env.Event, p.topic, err)
	}
	logger.Debugf("Notification: %s of job '%s' published (partition %d, offset %d).", env.Event, key, partition, offset)
	return nil
}

// Close closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// headerCarrier lets the propagator write trace context into message headers.
type headerCarrier struct {
	msg *sarama.ProducerMessage
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if string(h.Key) == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = string(h.Key)
	}
	return keys
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)

var _ propagation.TextMapCarrier = headerCarrier{}
