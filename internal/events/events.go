// Package events delivers floor events to the outside world: redis pub/sub for
// the live floor views, kafka for downstream consumers and the service log.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"syntra-floor/internal/coordinator"
	"syntra-floor/internal/logger"
)

const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkKafka = "kafka"
)

// Fanout delivers each event to every sink in order. A failing sink does not
// stop the others; the failures are joined.
type Fanout []coordinator.Notifier

func (f Fanout) Notify(ctx context.Context, e coordinator.Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes a line per event.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, e coordinator.Event) error {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.OrderID != "" {
		msg = fmt.Sprintf("%s (order %s)", msg, e.OrderID)
	}
	if len(e.TableIDs) > 0 {
		msg = fmt.Sprintf("%s tables=%s", msg, strings.Join(e.TableIDs, ","))
	}
	s.log.LogEvent(string(e.Type), "floor", msg)
	return nil
}

type Options struct {
	Redis redis.UniversalClient
	Kafka *KafkaProducer
	Log   *logger.Logger
}

// FromNames builds the notifier for the configured sink names. No names means
// log only.
func FromNames(names []string, o Options) (coordinator.Notifier, error) {
	if len(names) == 0 {
		names = []string{SinkLog}
	}
	var out Fanout
	for _, name := range names {
		switch strings.ToLower(name) {
		case SinkLog:
			out = append(out, NewLogSink(o.Log))
		case SinkRedis:
			if o.Redis == nil {
				return nil, fmt.Errorf("sink %q needs a redis client", name)
			}
			out = append(out, NewRedisPublisher(o.Redis))
		case SinkKafka:
			if o.Kafka == nil {
				return nil, fmt.Errorf("sink %q needs a kafka producer", name)
			}
			out = append(out, o.Kafka)
		default:
			return nil, fmt.Errorf("unknown event sink %q", name)
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}
