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

// PostgreSQLEmailRepository implements EmailRecord persistence for PostgreSQL.
type PostgreSQLEmailRepository struct {
	db *sql.DB
}

// NewPostgreSQLEmailRepository creates a new PostgreSQL email repository.
func NewPostgreSQLEmailRepository(db *sql.DB) *PostgreSQLEmailRepository {
	return &PostgreSQLEmailRepository{db: db}
}

// Create inserts a new email record.
func (p *PostgreSQLEmailRepository) Create(ctx context.Context, record *domain.EmailRecord) error {
	querier := database.GetTx(ctx, p.db)

	detail, err := encodeDetail(record.LastOutcomeDetail)
	if err != nil {
		return err
	}

	query := `INSERT INTO email_records (` + emailColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = querier.ExecContext(
		ctx,
		query,
		record.ID,
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
func (p *PostgreSQLEmailRepository) Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + emailColumns + ` FROM email_records WHERE id = $1`

	record, err := p.scan(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEmailNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get email record")
	}

	return record, nil
}

// List returns records matching filter ordered by creation time, newest first.
func (p *PostgreSQLEmailRepository) List(
	ctx context.Context,
	filter domain.ListFilter,
	offset, limit int,
) ([]*domain.EmailRecord, error) {
	querier := database.GetTx(ctx, p.db)

	ph := &placeholders{dollar: true}
	var conditions []string
	var args []any
	if filter.Status != nil {
		conditions = append(conditions, "status = "+ph.next())
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
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT " + ph.next() + " OFFSET " + ph.next())
	args = append(args, limit, offset)

	rows, err := querier.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list email records")
	}
	defer rows.Close() //nolint:errcheck

	return p.collect(rows)
}

// ListEligible returns up to limit records that may be delivered at now, ordered by
// priority descending, then oldest first. The read takes no locks; ownership is
// decided by Claim.
func (p *PostgreSQLEmailRepository) ListEligible(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.EmailRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + emailColumns + `
			  FROM email_records
			  WHERE status IN ('queued', 'failed')
			    AND attempt_count < max_attempts
			    AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
			  ORDER BY priority DESC, created_at ASC, id ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list eligible email records")
	}
	defer rows.Close() //nolint:errcheck

	return p.collect(rows)
}

// Claim moves the record to processing only if it is still in the status and
// attempt count the caller read. It reports false when another run got there first.
func (p *PostgreSQLEmailRepository) Claim(ctx context.Context, record *domain.EmailRecord, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE email_records
			  SET status = 'processing', updated_at = $1
			  WHERE id = $2 AND status = $3 AND attempt_count = $4 AND attempt_count < max_attempts`

	result, err := querier.ExecContext(ctx, query, now, record.ID, record.Status, record.AttemptCount)
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
func (p *PostgreSQLEmailRepository) Complete(ctx context.Context, record *domain.EmailRecord) error {
	querier := database.GetTx(ctx, p.db)

	detail, err := encodeDetail(record.LastOutcomeDetail)
	if err != nil {
		return err
	}

	query := `UPDATE email_records
			  SET status = $1, attempt_count = $2, last_attempt_at = $3, sent_at = $4,
			      next_attempt_at = $5, last_outcome_detail = $6, updated_at = $7
			  WHERE id = $8 AND status = 'processing'`

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
		record.ID,
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
func (p *PostgreSQLEmailRepository) RecoverStale(ctx context.Context, before, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	detail, err := encodeDetail(staleDetail())
	if err != nil {
		return 0, err
	}

	query := `UPDATE email_records
			  SET status = 'failed', attempt_count = attempt_count + 1, last_attempt_at = $1,
			      last_outcome_detail = $2, updated_at = $1
			  WHERE status = 'processing' AND updated_at < $3`

	result, err := querier.ExecContext(ctx, query, now, detail, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to recover stale email records")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read recover result")
	}

	return rows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgreSQLEmailRepository) scan(row rowScanner) (*domain.EmailRecord, error) {
	var record domain.EmailRecord
	var detail []byte

	err := row.Scan(
		&record.ID,
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

	if record.LastOutcomeDetail, err = decodeDetail(detail); err != nil {
		return nil, err
	}

	return &record, nil
}

func (p *PostgreSQLEmailRepository) collect(rows *sql.Rows) ([]*domain.EmailRecord, error) {
	records := make([]*domain.EmailRecord, 0)
	for rows.Next() {
		record, err := p.scan(rows)
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
