package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/maildispatch/internal/database"
	"github.com/allisson/maildispatch/internal/email/domain"
	apperrors "github.com/allisson/maildispatch/internal/errors"
)

// PostgreSQLDeliveryAttemptRepository stores the provider call audit trail in PostgreSQL.
type PostgreSQLDeliveryAttemptRepository struct {
	db *sql.DB
}

// NewPostgreSQLDeliveryAttemptRepository creates a new PostgreSQL delivery attempt repository.
func NewPostgreSQLDeliveryAttemptRepository(db *sql.DB) *PostgreSQLDeliveryAttemptRepository {
	return &PostgreSQLDeliveryAttemptRepository{db: db}
}

// Create appends one attempt row.
func (p *PostgreSQLDeliveryAttemptRepository) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO email_delivery_attempts
			  (id, email_id, attempt_number, provider, success, error_class, reason, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		attempt.ID,
		attempt.EmailID,
		attempt.AttemptNumber,
		attempt.Provider,
		attempt.Success,
		attempt.ErrorClass,
		attempt.Reason,
		attempt.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create delivery attempt")
	}

	return nil
}

// ListByEmail returns the attempts for an email in the order they were made.
func (p *PostgreSQLDeliveryAttemptRepository) ListByEmail(
	ctx context.Context,
	emailID uuid.UUID,
) ([]*domain.DeliveryAttempt, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, email_id, attempt_number, provider, success, error_class, reason, created_at
			  FROM email_delivery_attempts
			  WHERE email_id = $1
			  ORDER BY attempt_number ASC, created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, emailID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list delivery attempts")
	}
	defer rows.Close() //nolint:errcheck

	attempts := make([]*domain.DeliveryAttempt, 0)
	for rows.Next() {
		var a domain.DeliveryAttempt
		err := rows.Scan(&a.ID, &a.EmailID, &a.AttemptNumber, &a.Provider, &a.Success,
			&a.ErrorClass, &a.Reason, &a.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan delivery attempt")
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate delivery attempts")
	}

	return attempts, nil
}
