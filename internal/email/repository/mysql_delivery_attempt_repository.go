package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/maildispatch/internal/database"
	"github.com/allisson/maildispatch/internal/email/domain"
	apperrors "github.com/allisson/maildispatch/internal/errors"
)

// MySQLDeliveryAttemptRepository stores the provider call audit trail in MySQL.
type MySQLDeliveryAttemptRepository struct {
	db *sql.DB
}

// NewMySQLDeliveryAttemptRepository creates a new MySQL delivery attempt repository.
func NewMySQLDeliveryAttemptRepository(db *sql.DB) *MySQLDeliveryAttemptRepository {
	return &MySQLDeliveryAttemptRepository{db: db}
}

// Create appends one attempt row.
func (m *MySQLDeliveryAttemptRepository) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	querier := database.GetTx(ctx, m.db)

	id, err := attempt.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal attempt id")
	}

	emailID, err := attempt.EmailID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal email id")
	}

	query := `INSERT INTO email_delivery_attempts
			  (id, email_id, attempt_number, provider, success, error_class, reason, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		emailID,
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
func (m *MySQLDeliveryAttemptRepository) ListByEmail(
	ctx context.Context,
	emailID uuid.UUID,
) ([]*domain.DeliveryAttempt, error) {
	querier := database.GetTx(ctx, m.db)

	emailIDBytes, err := emailID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal email id")
	}

	query := `SELECT id, email_id, attempt_number, provider, success, error_class, reason, created_at
			  FROM email_delivery_attempts
			  WHERE email_id = ?
			  ORDER BY attempt_number ASC, created_at ASC, id ASC`

	rows, err := querier.QueryContext(ctx, query, emailIDBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list delivery attempts")
	}
	defer rows.Close() //nolint:errcheck

	attempts := make([]*domain.DeliveryAttempt, 0)
	for rows.Next() {
		var a domain.DeliveryAttempt
		var id, email []byte
		err := rows.Scan(&id, &email, &a.AttemptNumber, &a.Provider, &a.Success,
			&a.ErrorClass, &a.Reason, &a.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan delivery attempt")
		}
		if err := a.ID.UnmarshalBinary(id); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal attempt id")
		}
		if err := a.EmailID.UnmarshalBinary(email); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal email id")
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate delivery attempts")
	}

	return attempts, nil
}
