package order

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type NotifierLogHook struct{}

func (h *NotifierLogHook) Fire(entry *logrus.Entry) error {
	entry.Message = "Notifier: " + entry.Message
	return nil
}

func (h *NotifierLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// EventPublisher delivers a committed domain event to the message broker.
type EventPublisher interface {
	Publish(topic, key string, body []byte) error
}

type rabbitPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*rabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}

	return &rabbitPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *rabbitPublisher) Publish(topic, key string, body []byte) error {
	return r.ch.PublishWithContext(context.Background(), r.exchange, topic, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   key,
		Body:        body,
	})
}

func (r *rabbitPublisher) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// OutboxDispatcher drains pending outbox rows and hands them to the
// publisher. A failed publish leaves the row pending for the next tick;
// order placement never waits on it.
type OutboxDispatcher struct {
	storage   Storage
	publisher EventPublisher
	log       *logrus.Entry
	interval  time.Duration
	batchSize int
}

func NewOutboxDispatcher(storage Storage, publisher EventPublisher, log *logrus.Entry) *OutboxDispatcher {
	return &OutboxDispatcher{
		storage:   storage,
		publisher: publisher,
		log:       log,
		interval:  time.Second,
		batchSize: 100,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchPending()
		}
	}
}

func (d *OutboxDispatcher) DispatchPending() {
	events, err := d.storage.FetchPendingEvents(d.batchSize)
	if err != nil {
		d.log.Errorf("failed to fetch pending events - %v", err)
		return
	}

	for _, event := range events {
		if err := d.publisher.Publish(event.Topic, event.EventID, event.Payload); err != nil {
			d.log.Errorf("failed to publish event %s - %v", event.EventID, err)
			return
		}

		if err := d.storage.MarkEventSent(event.ID); err != nil {
			d.log.Errorf("failed to mark event %s sent - %v", event.EventID, err)
			return
		}

		d.log.Debugf("published event %s to %s", event.EventID, event.Topic)
	}
}
