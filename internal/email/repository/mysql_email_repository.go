package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/maildispatch/internal/database"
	"github.com/allisson/maildispatch/internal/email/domain"
	apperrors "github.com/allisson/maildispatch/internal/errors"
)

// MySQLEmailRepository implements EmailRecord persistence for MySQL. UUIDs are stored as BINARY(16).
type MySQLEmailRepository struct {
	db *sql.DB
}

// NewMySQLEmailRepository creates a new MySQL email repository.
func NewMySQLEmailRepository(db *sql.DB) *MySQLEmailRepository {
	return &MySQLEmailRepository{db: db}
}

// Create inserts a new email record.
func (m *MySQLEmailRepository) Create(ctx context.Context, record *domain.EmailRecord) error {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal email id")
	}

	detail, err := encodeDetail(record.LastOutcomeDetail)
	if err != nil {
		return err
	}

	query := `INSERT INTO email_records (` + emailColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		record.Recipient,
		record.Subject,
		record.BodyHTML,
		record.BodyText,
		record.Category,
		record.Priority,
		record.Status,
		record.AttemptCount,
		record.MaxAttempts,
		record.LastAttemptAt,
		record.SentAt,
		record.NextAttemptAt,
		detail,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create email record")
	}

	return nil
}

// Get retrieves an email record by ID.
func (m *MySQLEmailRepository) Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal email id")
	}

	query := `SELECT ` + emailColumns + ` FROM email_records WHERE id = ?`

	record, err := m.scan(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEmailNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get email record")
	}

	return record, nil
}

// List returns records matching filter ordered by creation time, newest first.
func (m *MySQLEmailRepository) List(
	ctx context.Context,
	filter domain.ListFilter,
	offset, limit int,
) ([]*domain.EmailRecord, error) {
	querier := database.GetTx(ctx, m.db)

	var conditions []string
	var args []any
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.ExhaustedOnly {
		conditions = append(conditions, "status = 'failed' AND attempt_count >= max_attempts")
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + emailColumns + ` FROM email_records`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := querier.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list email records")
	}
	defer rows.Close() //nolint:errcheck

	return m.collect(rows)
}

// ListEligible returns up to limit records that may be delivered at now.
func (m *MySQLEmailRepository) ListEligible(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.EmailRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + emailColumns + `
			  FROM email_records
			  WHERE status IN ('queued', 'failed')
			    AND attempt_count < max_attempts
			    AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
			  ORDER BY priority DESC, created_at ASC, id ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list eligible email records")
	}
	defer rows.Close() //nolint:errcheck

	return m.collect(rows)
}

// Claim moves the record to processing only if it still matches what the caller read.
func (m *MySQLEmailRepository) Claim(ctx context.Context, record *domain.EmailRecord, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal email id")
	}

	query := `UPDATE email_records
			  SET status = 'processing', updated_at = ?
			  WHERE id = ? AND status = ? AND attempt_count = ? AND attempt_count < max_attempts`

	result, err := querier.ExecContext(ctx, query, now, id, record.Status, record.AttemptCount)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to claim email record")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read claim result")
	}

	return rows == 1, nil
}

// Complete writes the delivery result of a claimed record.
func (m *MySQLEmailRepository) Complete(ctx context.Context, record *domain.EmailRecord) error {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal email id")
	}

	detail, err := encodeDetail(record.LastOutcomeDetail)
	if err != nil {
		return err
	}

	query := `UPDATE email_records
			  SET status = ?, attempt_count = ?, last_attempt_at = ?, sent_at = ?,
			      next_attempt_at = ?, last_outcome_detail = ?, updated_at = ?
			  WHERE id = ? AND status = 'processing'`

	result, err := querier.ExecContext(
		ctx,
		query,
		record.Status,
		record.AttemptCount,
		record.LastAttemptAt,
		record.SentAt,
		record.NextAttemptAt,
		detail,
		record.UpdatedAt,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to complete email record")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read complete result")
	}
	if rows == 0 {
		return domain.ErrClaimLost
	}

	return nil
}

// RecoverStale fails records left in processing since before, counting the interrupted attempt.
func (m *MySQLEmailRepository) RecoverStale(ctx context.Context, before, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	detail, err := encodeDetail(staleDetail())
	if err != nil {
		return 0, err
	}

	query := `UPDATE email_records
			  SET status = 'failed', attempt_count = attempt_count + 1, last_attempt_at = ?,
			      last_outcome_detail = ?, updated_at = ?
			  WHERE status = 'processing' AND updated_at < ?`

	result, err := querier.ExecContext(ctx, query, now, detail, now, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to recover stale email records")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read recover result")
	}

	return rows, nil
}

func (m *MySQLEmailRepository) scan(row rowScanner) (*domain.EmailRecord, error) {
	var record domain.EmailRecord
	var id, detail []byte

	err := row.Scan(
		&id,
		&record.Recipient,
		&record.Subject,
		&record.BodyHTML,
		&record.BodyText,
		&record.Category,
		&record.Priority,
		&record.Status,
		&record.AttemptCount,
		&record.MaxAttempts,
		&record.LastAttemptAt,
		&record.SentAt,
		&record.NextAttemptAt,
		&detail,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := record.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal email id")
	}

	if record.LastOutcomeDetail, err = decodeDetail(detail); err != nil {
		return nil, err
	}

	return &record, nil
}

func (m *MySQLEmailRepository) collect(rows *sql.Rows) ([]*domain.EmailRecord, error) {
	records := make([]*domain.EmailRecord, 0)
	for rows.Next() {
		record, err := m.scan(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan email record")
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate email records")
	}

	return records, nil
}
