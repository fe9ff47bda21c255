package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// Publisher publishes order-status notifications. Publishing is best-effort:
// the order lifecycle never depends on a notification being delivered.
type Publisher struct {
	conn   *Connection
	logger *logger.Logger
}

// NewPublisher creates a new status-notification publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishStatusUpdate publishes a status change to the fanout exchange.
func (p *Publisher) PublishStatusUpdate(ctx context.Context, notification models.StatusNotification) error {
	channel, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		StatusExchange, // exchange
		"",             // routing key (fanout)
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		p.logger.Error("notification_publish_failed",
			"Failed to publish status notification", "", err, map[string]interface{}{
				"order_id":  notification.OrderID,
				"to_status": notification.ToStatus,
			})
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	p.logger.Debug("notification_published",
		"Published status notification", "", map[string]interface{}{
			"order_id":  notification.OrderID,
			"to_status": notification.ToStatus,
		})

	return nil
}
