package persist

import (
	"context"
	"time"
)

// NotificationRow mirrors one row of the notifications table.
type NotificationRow struct {
	ID        int64
	UserID    int64
	Kind      string
	Priority  string
	Payload   []byte
	Read      bool
	CreatedAt time.Time
}

type NotificationRepo struct {
	db *DB
}

func NewNotificationRepo(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Insert(ctx context.Context, userID int64, kind, priority string, payload []byte, at time.Time) error {
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO notifications (user_id, kind, priority, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		userID, kind, priority, payload, at)
	return err
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`,
		id, userID)
	return err
}

// RecentFor returns the newest notifications for a user, newest first.
func (r *NotificationRepo) RecentFor(ctx context.Context, userID int64, limit int) ([]NotificationRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, kind, priority, payload, read, created_at
		 FROM notifications WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NotificationRow
	for rows.Next() {
		var n NotificationRow
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Priority, &n.Payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
