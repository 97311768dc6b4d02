package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/facezhuk/internal/domain"
)

// NotificationFilter narrows a notification listing.
type NotificationFilter struct {
	Read   *bool
	Limit  int
	Offset int
}

// NotificationRepository stores notifications addressed to usernames.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, username string, filter NotificationFilter) ([]domain.Notification, error)
	MarkRead(ctx context.Context, username string, ids []int64, read bool) (int64, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a Postgres-backed implementation.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (username, data, is_read)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query, n.Username, n.Data, n.Read).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ListByUser(ctx context.Context, username string, filter NotificationFilter) ([]domain.Notification, error) {
	query, args := listQuery(username, filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Notification, error) {
		var n domain.Notification
		err := row.Scan(&n.ID, &n.Username, &n.Data, &n.Read, &n.CreatedAt)
		return n, err
	})
}

func (r *notificationRepository) MarkRead(ctx context.Context, username string, ids []int64, read bool) (int64, error) {
	const query = `UPDATE notifications SET is_read=$1 WHERE username=$2 AND id = ANY($3)`

	cmd, err := r.pool.Exec(ctx, query, read, username, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func listQuery(username string, filter NotificationFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT id, username, data, is_read, created_at FROM notifications WHERE username=$1`)
	args := []any{username}

	if filter.Read != nil {
		args = append(args, *filter.Read)
		fmt.Fprintf(&b, ` AND is_read=$%d`, len(args))
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, ` OFFSET $%d`, len(args))
	}
	return b.String(), args
}
