package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/recgraph/pkg/logger"
	"github.com/OFFIS-RIT/recgraph/pkg/store"

	"github.com/rabbitmq/amqp091-go"
)

const maxRetries = 10

// RecoverStaleBuilds re-enqueues builds that were left pending or building
// for longer than olderThan, typically by a worker that died mid-build.
func RecoverStaleBuilds(
	ctx context.Context,
	graphs store.GraphStorage,
	publisher Publisher,
	olderThan time.Duration,
) error {
	stale, err := graphs.ListStaleBuilds(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("failed to get stale builds: %w", err)
	}

	if len(stale) == 0 {
		logger.Debug("[Queue] No stale builds found")
		return nil
	}

	logger.Info("[Queue] Found stale builds", "count", len(stale))

	for _, record := range stale {
		msgBytes, err := encode(NewBuildGraphMsg(record))
		if err != nil {
			logger.Error("[Queue] Failed to marshal queue message", "graph_id", record.ID, "err", err)
			continue
		}

		if err := publisher.PublishFIFO(BuildQueue, msgBytes); err != nil {
			logger.Error("[Queue] Failed to republish build", "graph_id", record.ID, "err", err)
			continue
		}

		logger.Info("[Queue] Recovered stale build", "graph_id", record.ID, "status", record.Status)
	}

	return nil
}

// retryCount reads the x-retries header. Brokers may hand integers back
// with a different width than they were published with.
func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

// retryTarget picks the queue a failed message is moved to and the retry
// count it carries there.
func retryTarget(queueName string, headers amqp091.Table, err error) (string, int) {
	retries := retryCount(headers)
	if IsPermanent(err) || retries >= maxRetries {
		return queueName + "_dlq", retries
	}
	return queueName + "_retry", retries + 1
}

// HandleProcessingError moves a failed delivery to its retry queue, or to
// the dead-letter queue when it can never succeed or ran out of retries.
func HandleProcessingError(ch *amqp091.Channel, msg amqp091.Delivery, queueName string, processingErr error) {
	target, retries := retryTarget(queueName, msg.Headers, processingErr)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries)

	if target == queueName+"_dlq" {
		logger.Info("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		logger.Debug("[Queue] Scheduling retry", "retry_queue", target, "retries", retries)
	}

	pubErr := ch.Publish(
		"",
		target,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to move message", "target", target, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
