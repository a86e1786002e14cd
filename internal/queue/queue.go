package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/liturgia/internal/config"
	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

// DefaultExchange receives job terminal events
const DefaultExchange = "liturgia.jobs"

// channel is the subset of *amqp.Channel used for publishing
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher announces finished and failed jobs to downstream stages
type Publisher struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
}

// New connects to RabbitMQ and declares the topic exchange
func New(cfg config.QueueConfig) (*Publisher, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
	}, nil
}

// Close closes the queue connection
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RoutingKey returns job.<state> for the record's terminal state
func RoutingKey(record models.JobRecord) string {
	return "job." + string(record.State)
}

// PublishRecord publishes a job's terminal record
func (p *Publisher) PublishRecord(ctx context.Context, record models.JobRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(record),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    record.RunID + ":" + record.JobID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}

	return nil
}
