package inbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farmlink_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	opCreate      = "notification.inbox.repository.create"
	opList        = "notification.inbox.repository.list"
	opCountUnread = "notification.inbox.repository.count_unread"
	opMarkRead    = "notification.inbox.repository.mark_read"
	opMarkAllRead = "notification.inbox.repository.mark_all_read"
	opPurgeRead   = "notification.inbox.repository.purge_read"

	errRepoNotConfigured = "notification inbox repository not configured"
)

// Notification is one farmer-facing inbox entry. IDs are assigned by the
// emitter (request id plus emission timestamp), not by the database.
type Notification struct {
	ID             string     `json:"id"`
	RecipientID    string     `json:"recipientId"`
	RecipientName  string     `json:"recipientName"`
	RecipientEmail string     `json:"recipientEmail,omitempty"`
	RequestID      string     `json:"requestId"`
	ServiceType    string     `json:"serviceType"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Category       string     `json:"category"`
	IsRead         bool       `json:"isRead"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// Store is the persistence boundary for the inbox. The pgx repository is
// the production implementation.
type Store interface {
	Create(ctx context.Context, n Notification) error
	List(ctx context.Context, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int, error)
	PurgeRead(ctx context.Context, olderThan time.Time) (int, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, n Notification) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opCreate)
	}
	if n.ID == "" || n.Message == "" {
		return apperr.Validation("id and message are required").WithOp(opCreate)
	}

	category := n.Category
	if category == "" {
		category = "info"
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO farm_notifications
		(id, recipient_id, recipient_name, recipient_email, request_id, service_type, title, message, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, n.RecipientID, n.RecipientName, n.RecipientEmail, n.RequestID, n.ServiceType, n.Title, n.Message, category, n.CreatedAt)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("create notification failed: %v", err)).WithOp(opCreate)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Notification, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, apperr.Internal(errRepoNotConfigured).WithOp(opList)
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM farm_notifications`).Scan(&total); err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("count notifications failed: %v", err)).WithOp(opList)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, recipient_name, recipient_email, request_id, service_type, title, message, category, is_read, created_at, read_at
		FROM farm_notifications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("list notifications query failed: %v", err)).WithOp(opList)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if scanErr := rows.Scan(&n.ID, &n.RecipientID, &n.RecipientName, &n.RecipientEmail, &n.RequestID,
			&n.ServiceType, &n.Title, &n.Message, &n.Category, &n.IsRead, &n.CreatedAt, &n.ReadAt); scanErr != nil {
			return nil, 0, apperr.Internal(fmt.Sprintf("scan notifications failed: %v", scanErr)).WithOp(opList)
		}
		items = append(items, n)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, apperr.Internal(fmt.Sprintf("iterate notifications failed: %v", rowsErr)).WithOp(opList)
	}

	return items, total, nil
}

func (r *Repository) CountUnread(ctx context.Context) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opCountUnread)
	}

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM farm_notifications WHERE is_read = FALSE
	`).Scan(&count)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("count unread notifications failed: %v", err)).WithOp(opCountUnread)
	}
	return count, nil
}

func (r *Repository) MarkRead(ctx context.Context, id string) error {
	if r == nil || r.pool == nil {
		return apperr.Internal(errRepoNotConfigured).WithOp(opMarkRead)
	}
	if id == "" {
		return apperr.Validation("notification id is required").WithOp(opMarkRead)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE farm_notifications
		SET is_read = TRUE, read_at = now()
		WHERE id = $1 AND is_read = FALSE
	`, id)
	if err != nil {
		return apperr.Internal(fmt.Sprintf("mark notification read failed: %v", err)).WithOp(opMarkRead)
	}
	if tag.RowsAffected() == 0 {
		if exists, checkErr := r.exists(ctx, id); checkErr == nil && !exists {
			return apperr.NotFound("notification not found").WithOp(opMarkRead)
		}
	}
	return nil
}

func (r *Repository) MarkAllRead(ctx context.Context) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opMarkAllRead)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE farm_notifications
		SET is_read = TRUE, read_at = now()
		WHERE is_read = FALSE
	`)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("mark all notifications read failed: %v", err)).WithOp(opMarkAllRead)
	}
	return int(tag.RowsAffected()), nil
}

// PurgeRead removes read notifications created before the cutoff. Used by
// the scheduler's retention job.
func (r *Repository) PurgeRead(ctx context.Context, olderThan time.Time) (int, error) {
	if r == nil || r.pool == nil {
		return 0, apperr.Internal(errRepoNotConfigured).WithOp(opPurgeRead)
	}

	tag, err := r.pool.Exec(ctx, `
		DELETE FROM farm_notifications
		WHERE is_read = TRUE AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, apperr.Internal(fmt.Sprintf("purge read notifications failed: %v", err)).WithOp(opPurgeRead)
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM farm_notifications WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Compile-time check that Repository implements Store.
var _ Store = (*Repository)(nil)
