package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/gradebook/core"
)

type notificationRepository struct {
	db *DB
}

var _ core.NotificationRepository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) core.NotificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notifications ...core.Notification) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.data.notifications = append(repo.db.data.notifications, notifications...)
	return nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, recipientID int) ([]core.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notifications := make([]core.Notification, 0)
	for _, notif := range repo.db.data.notifications {
		if notif.RecipientID == recipientID {
			notifications = append(notifications, notif)
		}
	}
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}
