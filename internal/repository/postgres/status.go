package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insider-one/notifications-go-client/internal/domain"
)

const statusColumns = `id, reference, recipient, type, status, template_id, template_version,
	created_at, sent_at, completed_at, updated_at`

// StatusRepository implements domain.StatusRepository using PostgreSQL
type StatusRepository struct {
	db *DB
}

// NewStatusRepository creates a new StatusRepository
func NewStatusRepository(db *DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Upsert inserts or replaces a delivery status. A stored final status is not
// replaced by a non-final one; that case returns domain.ErrStaleStatus.
func (r *StatusRepository) Upsert(ctx context.Context, s *domain.DeliveryStatus) error {
	query := `
		INSERT INTO delivery_statuses (
			id, reference, recipient, type, status, is_final, template_id,
			template_version, created_at, sent_at, completed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO UPDATE SET
			reference = COALESCE(EXCLUDED.reference, delivery_statuses.reference),
			recipient = CASE WHEN EXCLUDED.recipient = '' THEN delivery_statuses.recipient ELSE EXCLUDED.recipient END,
			status = EXCLUDED.status,
			is_final = EXCLUDED.is_final,
			template_id = COALESCE(EXCLUDED.template_id, delivery_statuses.template_id),
			template_version = COALESCE(EXCLUDED.template_version, delivery_statuses.template_version),
			sent_at = COALESCE(EXCLUDED.sent_at, delivery_statuses.sent_at),
			completed_at = COALESCE(EXCLUDED.completed_at, delivery_statuses.completed_at),
			updated_at = EXCLUDED.updated_at
		WHERE NOT (delivery_statuses.is_final AND NOT EXCLUDED.is_final)
	`

	result, err := r.db.Pool.Exec(ctx, query,
		s.ID, s.Reference, s.Recipient, s.Type, s.Status, s.Status.IsFinal(), s.TemplateID,
		s.TemplateVersion, s.CreatedAt, s.SentAt, s.CompletedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrStaleStatus
	}

	return nil
}

// GetByID retrieves a delivery status by notification ID
func (r *StatusRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryStatus, error) {
	query := `SELECT ` + statusColumns + ` FROM delivery_statuses WHERE id = $1`

	s, err := scanStatus(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan delivery status: %w", err)
	}
	return s, nil
}

// List lists delivery statuses with filters and pagination
func (r *StatusRepository) List(ctx context.Context, filter domain.StatusFilter) (*domain.StatusListResult, error) {
	whereClause, args := statusConditions(filter)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM delivery_statuses WHERE %s", whereClause)
	var total int64
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count delivery statuses: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM delivery_statuses
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, statusColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, pageSize, offset)
	statuses, err := r.scanStatuses(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &domain.StatusListResult{
		Statuses:   statuses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// ListStale retrieves non-final statuses not updated since before, oldest first
func (r *StatusRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*domain.DeliveryStatus, error) {
	query := `
		SELECT ` + statusColumns + `
		FROM delivery_statuses
		WHERE is_final = FALSE AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	return r.scanStatuses(ctx, query, before, limit)
}

// MarkChecked sets updated_at on a non-final status so it moves behind the
// statuses that have waited longer
func (r *StatusRepository) MarkChecked(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE delivery_statuses SET updated_at = $2 WHERE id = $1 AND is_final = FALSE`

	if _, err := r.db.Pool.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark delivery status checked: %w", err)
	}
	return nil
}

// MarkExpired takes a status out of reconciliation. The status column keeps
// the last value Notify reported.
func (r *StatusRepository) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE delivery_statuses SET is_final = TRUE, updated_at = $2 WHERE id = $1 AND is_final = FALSE`

	if _, err := r.db.Pool.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark delivery status expired: %w", err)
	}
	return nil
}

// statusConditions builds the WHERE clause and its arguments for filter
func statusConditions(filter domain.StatusFilter) (string, []any) {
	conditions := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}

	if filter.Reference != nil {
		args = append(args, *filter.Reference)
		conditions = append(conditions, fmt.Sprintf("reference = $%d", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func scanStatus(row pgx.Row) (*domain.DeliveryStatus, error) {
	s := &domain.DeliveryStatus{}
	err := row.Scan(
		&s.ID, &s.Reference, &s.Recipient, &s.Type, &s.Status, &s.TemplateID, &s.TemplateVersion,
		&s.CreatedAt, &s.SentAt, &s.CompletedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *StatusRepository) scanStatuses(ctx context.Context, query string, args ...any) ([]*domain.DeliveryStatus, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery statuses: %w", err)
	}
	defer rows.Close()

	statuses := make([]*domain.DeliveryStatus, 0)
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery status: %w", err)
		}
		statuses = append(statuses, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery statuses: %w", err)
	}

	return statuses, nil
}
