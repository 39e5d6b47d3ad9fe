package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

const notificationTable = "notification"

type notificationRow struct {
	ID          string    `db:"id"`
	RecipientID int       `db:"user_id"`
	CreatorID   int       `db:"creator_id"`
	Title       string    `db:"title"`
	Body        string    `db:"body"`
	CreatedAt   time.Time `db:"created_at"`
}

type notificationRepository struct {
	db *sqlx.DB
}

var _ core.NotificationRepository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notifications ...core.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	query := psql.Insert(notificationTable).Columns("id", "user_id", "creator_id", "title", "body", "created_at")
	for _, n := range notifications {
		query = query.Values(n.ID, n.RecipientID, n.CreatorID, n.Title, n.Body, n.CreatedAt)
	}
	if _, err := exec(ctx, repo.db, query); err != nil {
		return errors.Wrap(err, "inserting notifications")
	}
	return nil
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, recipientID int) ([]core.Notification, error) {
	query := psql.Select("id", "user_id", "creator_id", "title", "body", "created_at").
		From(notificationTable).
		Where(sq.Eq{"user_id": recipientID}).
		OrderBy(core.DBOrdering{Field: "created_at", Ascending: false}.String())

	var rows []notificationRow
	if err := sel(ctx, repo.db, &rows, query); err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}

	notifications := make([]core.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = core.Notification{
			ID:          row.ID,
			RecipientID: row.RecipientID,
			CreatorID:   row.CreatorID,
			Title:       row.Title,
			Body:        row.Body,
			CreatedAt:   row.CreatedAt.UTC(),
		}
	}
	return notifications, nil
}
