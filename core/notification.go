package core

import (
	"context"
	"time"
)

type (
	Notification struct {
		ID             string    `json:"id"`
		RecipientID    int       `json:"user_id"`
		RecipientName  string    `json:"-"`
		RecipientEmail string    `json:"-"`
		CreatorID      int       `json:"creator_id"`
		Title          string    `json:"title"`
		Body           string    `json:"body"`
		CreatedAt      time.Time `json:"created_at"` // UTC
	}

	// NotificationService is any service that can deliver notifications.
	// Delivery is fire-and-forget: Notify never blocks on transport and never reports failures.
	NotificationService interface {
		Notify(notifications ...Notification)
	}

	NotificationRepository interface {
		CreateNotifications(ctx context.Context, notifications ...Notification) error
		// QueryNotifications returns a user's notifications, newest first.
		QueryNotifications(ctx context.Context, recipientID int) ([]Notification, error)
	}
)
