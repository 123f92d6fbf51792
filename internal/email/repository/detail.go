// Package repository provides data persistence implementations for email records.
package repository

import (
	"strconv"

	"github.com/goccy/go-json"

	"github.com/allisson/maildispatch/internal/email/domain"
	apperrors "github.com/allisson/maildispatch/internal/errors"
)

const emailColumns = `id, recipient, subject, body_html, body_text, category, priority, status,
	attempt_count, max_attempts, last_attempt_at, sent_at, next_attempt_at, last_outcome_detail,
	created_at, updated_at`

// encodeDetail renders the outcome detail for a JSON column; nil stays NULL.
func encodeDetail(detail *domain.OutcomeDetail) (*string, error) {
	if detail == nil {
		return nil, nil
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode outcome detail")
	}
	s := string(b)
	return &s, nil
}

func decodeDetail(raw []byte) (*domain.OutcomeDetail, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var detail domain.OutcomeDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, apperrors.Wrap(err, "failed to decode outcome detail")
	}
	return &detail, nil
}

// staleDetail is stored on records released by stale-claim recovery.
func staleDetail() *domain.OutcomeDetail {
	return &domain.OutcomeDetail{
		ErrorClass: domain.ErrorClassUnknown,
		Reason:     "delivery interrupted while processing",
		Attempts:   []domain.ProviderAttempt{},
	}
}

// placeholders builds positional parameters for the given dialect.
type placeholders struct {
	dollar bool
	n      int
}

func (p *placeholders) next() string {
	p.n++
	if p.dollar {
		return "$" + strconv.Itoa(p.n)
	}
	return "?"
}
