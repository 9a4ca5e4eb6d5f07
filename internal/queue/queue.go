package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/recgraph/internal/util"
	"github.com/OFFIS-RIT/recgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	BuildQueue  = "build_queue"
	DeleteQueue = "delete_queue"

	TopicGraphBuilt  = "graph.built"
	TopicGraphFailed = "graph.failed"

	topicExchange = "pubsub_exchange"
	retryDelayMs  = 10000
)

// Queues lists every work queue consumed by the worker.
var Queues = []string{BuildQueue, DeleteQueue}

func Init() *amqp091.Connection {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnv("RABBITMQ_PORT")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := util.RetryWithContext(context.Background(), 5, 2*time.Second, func(context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(connURL)
		if err != nil {
			logger.Warn("[Queue] RabbitMQ not reachable yet", "host", host, "err", err)
		}
		return conn, err
	})
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares each work queue together with its dead-letter queue
// "<name>_dlq" and its retry queue "<name>_retry", which dead-letters back
// into the work queue after a fixed delay.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	err := ch.ExchangeDeclare(
		topicExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("exchange declare failed: %w", err)
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s failed: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s failed: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("queue declare %s failed: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		queueName,
		false,
		false,
		publishing,
	)
}

func PublishTopic(ch *amqp091.Channel, topic string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		topicExchange,
		topic,
		false,
		false,
		publishing,
	)
}

// Publisher sends messages to work queues and topics.
type Publisher interface {
	PublishFIFO(queueName string, data []byte) error
	PublishTopic(topic string, data []byte) error
}

// ChannelPublisher publishes on a single AMQP channel. amqp091 channels are
// not safe for concurrent publishing, so callers share one per goroutine.
type ChannelPublisher struct {
	ch *amqp091.Channel
}

func NewChannelPublisher(ch *amqp091.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) PublishFIFO(queueName string, data []byte) error {
	return PublishFIFO(p.ch, queueName, data)
}

func (p *ChannelPublisher) PublishTopic(topic string, data []byte) error {
	return PublishTopic(p.ch, topic, data)
}
