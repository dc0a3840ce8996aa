package services

import (
	"log"

	"cuahang/internal/models"
)

// Notifier is the notification side-channel. Publishing is best-effort:
// callers log failures and continue, so notification delivery can never fail
// or block an order or payment operation. pkg/rabbitmq provides the real
// implementation.
type Notifier interface {
	PublishNotification(event models.NotificationEvent) error
}

// notify publishes an event and swallows any error. A nil notifier is valid
// and means notifications are disabled.
func notify(n Notifier, event models.NotificationEvent) {
	if n == nil {
		return
	}
	if err := n.PublishNotification(event); err != nil {
		log.Printf("Warning: failed to publish %s notification for order %s: %v", event.Type, event.OrderID, err)
	}
}
