package notification

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-import/pkg/importer/core/application/port"
	config "github.com/tigerroll/surfin-import/pkg/importer/core/config"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

type publisherResult struct {
	fx.Out
	Publisher port.EventPublisher
	Broker    *Broker
}

// NewEventPublisher assembles the backends listed in importer.events.backends.
// The Broker is always provided so that in-process consumers can subscribe;
// it only receives events when "broker" is listed.
func NewEventPublisher(lc fx.Lifecycle, cfg *config.Config) (publisherResult, error) {
	ecfg := cfg.Importer.Events
	broker := NewBroker(ecfg.BrokerBufferSize)

	var publishers []port.EventPublisher
	for _, backend := range splitList(ecfg.Backends) {
		switch backend {
		case "log":
			publishers = append(publishers, NewLogPublisher())
		case "broker":
			publishers = append(publishers, broker)
		case "kafka":
			kafka, err := DialKafkaPublisher(ecfg.Kafka)
			if err != nil {
				return publisherResult{}, err
			}
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return kafka.Close()
				},
			})
			publishers = append(publishers, kafka)
		default:
			logger.Warnf("Notification: unknown event backend '%s' ignored.", backend)
		}
	}
	logger.Debugf("Notification: %d event backend(s) configured.", len(publishers))
	return publisherResult{Publisher: NewMultiPublisher(publishers...), Broker: broker}, nil
}

// Module provides port.EventPublisher and the in-process *Broker.
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
