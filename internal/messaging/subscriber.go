package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"food-delivery/internal/logger"
	"food-delivery/internal/models"
)

// Subscriber consumes order-status notifications and logs them. It is a
// passive observer used by the notification-subscriber mode; it never writes
// back into the order lifecycle.
type Subscriber struct {
	conn   *Connection
	logger *logger.Logger
}

// NewSubscriber creates a new notification subscriber
func NewSubscriber(conn *Connection, log *logger.Logger) *Subscriber {
	return &Subscriber{
		conn:   conn,
		logger: log,
	}
}

// Run binds an exclusive queue to the status exchange and consumes until the
// context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	channel, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}

	queue, err := channel.QueueDeclare(
		"",    // name (server-generated)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(queue.Name, "", StatusExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	deliveries, err := channel.Consume(
		queue.Name,
		"",    // consumer tag
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	s.logger.Info("subscriber_started", "Listening for order status notifications", "", map[string]interface{}{
		"queue": queue.Name,
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var notification models.StatusNotification
			if err := json.Unmarshal(delivery.Body, &notification); err != nil {
				s.logger.Error("notification_decode_failed", "Failed to decode notification", "", err, nil)
				continue
			}

			s.logger.Info("status_update", fmt.Sprintf("Order %d: %s -> %s",
				notification.OrderID, notification.FromStatus, notification.ToStatus), "",
				map[string]interface{}{
					"order_id":    notification.OrderID,
					"from_status": notification.FromStatus,
					"to_status":   notification.ToStatus,
					"changed_at":  notification.ChangedAt,
				})
		}
	}
}
