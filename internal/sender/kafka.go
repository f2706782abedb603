package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/GabrielNunesIT/go-libs/logger"
	"github.com/segmentio/kafka-go"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
)

// MessageWriter is the subset of *kafka.Writer the sender uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOption configures a Kafka sender.
type KafkaOption func(*Kafka)

// WithKafkaWriter sets a custom writer for testing.
func WithKafkaWriter(w MessageWriter) KafkaOption {
	return func(k *Kafka) {
		k.writer = w
	}
}

// Kafka produces one message per entry to a topic, keyed by channel.
type Kafka struct {
	cfg    config.KafkaSenderConfig
	writer MessageWriter
	wg     sync.WaitGroup
	logger logger.ILogger
}

// NewKafka creates a new Kafka sender.
func NewKafka(cfg config.KafkaSenderConfig, log logger.ILogger, opts ...KafkaOption) *Kafka {
	k := &Kafka{
		cfg:    cfg,
		logger: log.SubLogger("KafkaSender"),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.writer == nil {
		k.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		}
	}
	return k
}

// Name returns the sender identifier.
func (k *Kafka) Name() string {
	return config.SenderKafka
}

// Start logs the target; the writer connects lazily.
func (k *Kafka) Start(ctx context.Context) error {
	k.logger.Infof("producing to Kafka: topic=%s, brokers=%v", k.cfg.Topic, k.cfg.Brokers)
	return nil
}

// Stop waits for in-flight writes and closes the writer.
func (k *Kafka) Stop(ctx context.Context) error {
	if err := waitGroup(ctx, &k.wg); err != nil {
		return err
	}
	return k.writer.Close()
}

// Send writes the batch on its own goroutine.
func (k *Kafka) Send(ctx context.Context, batch *model.Batch, done CompletionFunc) {
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		res := k.write(ctx, batch)
		if res.Err != nil {
			k.logger.Debugf("write failed: batch=%s, status=%s, error=%v", batch.ID, res.Status, res.Err)
		}
		done(res)
	}()
}

func (k *Kafka) write(ctx context.Context, batch *model.Batch) Result {
	msgs := make([]kafka.Message, 0, batch.Len())
	for _, entry := range batch.Entries {
		value, err := json.Marshal(entry.Fields("timestamp", "source", "message"))
		if err != nil {
			return Fatal(fmt.Errorf("encoding entry %d: %w", entry.ID, err))
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(batch.GroupID),
			Value: value,
			Time:  entry.Timestamp,
			Headers: []kafka.Header{
				{Key: "batch", Value: []byte(batch.ID)},
				{Key: "event", Value: []byte(strconv.FormatInt(entry.ID, 10))},
			},
		})
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return classifyKafkaError(err)
	}
	return Succeeded()
}

// classifyKafkaError treats broker errors flagged temporary, and anything
// that is not a broker error (network, timeouts), as recoverable.
func classifyKafkaError(err error) Result {
	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		res := Succeeded()
		for _, e := range writeErrs {
			if e != nil {
				res = worst(res, classifyKafkaError(e))
			}
		}
		if res.Status == StatusSuccess {
			return Recoverable(err)
		}
		res.Err = err
		return res
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) && !kerr.Temporary() {
		return Fatal(err)
	}
	return Recoverable(err)
}
