package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/insider-one/notifications-go-client/internal/domain"
)

const defaultReceivedTextLimit = 50

// ReceivedTextRepository implements domain.ReceivedTextRepository using PostgreSQL
type ReceivedTextRepository struct {
	db *DB
}

// NewReceivedTextRepository creates a new ReceivedTextRepository
func NewReceivedTextRepository(db *DB) *ReceivedTextRepository {
	return &ReceivedTextRepository{db: db}
}

// Create stores an inbound message. Notify may deliver the same callback more
// than once; a repeated id returns domain.ErrAlreadyExists.
func (r *ReceivedTextRepository) Create(ctx context.Context, rt *domain.ReceivedText) error {
	query := `
		INSERT INTO received_texts (id, source_number, destination_number, message, received_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.Pool.Exec(ctx, query,
		rt.ID, rt.SourceNumber, rt.DestinationNumber, rt.Message, rt.ReceivedAt, rt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create received text: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}

	return nil
}

// List retrieves inbound messages, newest first
func (r *ReceivedTextRepository) List(ctx context.Context, filter domain.ReceivedTextFilter) ([]*domain.ReceivedText, error) {
	whereClause, args := receivedTextConditions(filter)

	limit := filter.Limit
	if limit < 1 || limit > 500 {
		limit = defaultReceivedTextLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, source_number, destination_number, message, received_at, created_at
		FROM received_texts
		WHERE %s
		ORDER BY received_at DESC
		LIMIT $%d
	`, whereClause, len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query received texts: %w", err)
	}
	defer rows.Close()

	texts := make([]*domain.ReceivedText, 0)
	for rows.Next() {
		rt := &domain.ReceivedText{}
		if err := rows.Scan(&rt.ID, &rt.SourceNumber, &rt.DestinationNumber, &rt.Message, &rt.ReceivedAt, &rt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan received text: %w", err)
		}
		texts = append(texts, rt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating received texts: %w", err)
	}

	return texts, nil
}

func receivedTextConditions(filter domain.ReceivedTextFilter) (string, []any) {
	conditions := []string{"1=1"}
	args := []any{}

	if filter.SourceNumber != nil {
		args = append(args, *filter.SourceNumber)
		conditions = append(conditions, fmt.Sprintf("source_number = $%d", len(args)))
	}

	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("received_at >= $%d", len(args)))
	}

	return strings.Join(conditions, " AND "), args
}
