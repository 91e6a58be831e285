package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-sales-service/internal/models"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
	PaymentEventRefunded  PaymentEventType = "payment.refunded"
)

var paymentStatusByEvent = map[PaymentEventType]models.PaymentStatus{
	PaymentEventCompleted: models.PaymentStatusPaid,
	PaymentEventFailed:    models.PaymentStatusFailed,
	PaymentEventRefunded:  models.PaymentStatusRefunded,
}

// PaymentEvent is read from the payments topic.
type PaymentEvent struct {
	ID        string           `json:"id"`
	Type      PaymentEventType `json:"type"`
	PaymentID string           `json:"payment_id"`
	OrderID   int64            `json:"order_id"`
	Timestamp time.Time        `json:"timestamp"`
}

// PaymentStatusApplier updates the payment status of an order.
type PaymentStatusApplier interface {
	ApplyPaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) (*models.Order, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const readErrorBackoff = time.Second

// KafkaConsumer consumes payment events from Kafka.
type KafkaConsumer struct {
	reader   messageReader
	payments PaymentStatusApplier
	metrics  *metrics.Metrics
	logger   *logrus.Entry
	stopCh   chan struct{}
	stopOnce sync.Once
	backoff  time.Duration
}

// NewKafkaConsumer creates a new Kafka-based payment event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, payments PaymentStatusApplier, m *metrics.Metrics, logger *logrus.Entry) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return newConsumer(reader, payments, m, logger)
}

func newConsumer(reader messageReader, payments PaymentStatusApplier, m *metrics.Metrics, logger *logrus.Entry) *KafkaConsumer {
	return &KafkaConsumer{
		reader:   reader,
		payments: payments,
		metrics:  m,
		logger:   logger,
		stopCh:   make(chan struct{}),
		backoff:  readErrorBackoff,
	}
}

// Start consumes events until ctx is done or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			select {
			case <-c.stopCh:
				c.logger.Info("Kafka consumer stopped")
				return nil
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}

			c.logger.WithField("error", err.Error()).Error("Failed to read message")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.stopCh:
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		if !c.process(ctx, msg) {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.WithFields(logrus.Fields{
				"offset": msg.Offset,
				"error":  err.Error(),
			}).Error("Failed to commit message")
		}
	}
}

// process handles msg until it is applied or rejected for good. Internal
// failures such as a database outage are retried so the offset is only
// committed once the event took effect. It returns false when the consumer
// is stopping and the message must stay uncommitted.
func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) bool {
	for {
		err := c.handleMessage(ctx, msg)
		if err == nil || metrics.FailureReason(err) != "internal" {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-c.stopCh:
			return false
		case <-time.After(c.backoff):
		}
	}
}

// Stop stops the consumer and closes the reader.
func (c *KafkaConsumer) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopCh)
		err = c.reader.Close()
	})
	return err
}

// handleMessage applies one payment event. Undecodable payloads and unknown
// event types are skipped and reported as nil.
func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	c.logger.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}).Debug("Received message")

	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.WithField("error", err.Error()).Error("Failed to unmarshal event")
		return nil
	}

	status, ok := paymentStatusByEvent[event.Type]
	if !ok {
		c.logger.WithField("type", event.Type).Debug("Ignoring unknown event type")
		return nil
	}

	c.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"payment_id": event.PaymentID,
		"order_id":   event.OrderID,
	}).Info("Handling payment event")

	_, err := c.payments.ApplyPaymentStatus(ctx, event.OrderID, status)
	c.metrics.ObservePaymentEvent(string(event.Type), err)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"order_id": event.OrderID,
			"error":    err.Error(),
		}).Error("Failed to update payment status")
	}
	return err
}
