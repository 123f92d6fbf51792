// Package domain defines the email dispatch entities and their state machine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an EmailRecord.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Category classifies the business origin of an email. It does not influence delivery.
type Category string

const (
	CategoryBookingConfirmation Category = "booking_confirmation"
	CategoryAdminAlert          Category = "admin_alert"
	CategoryApplicationReceipt  Category = "application_receipt"
	CategoryGeneric             Category = "generic"
)

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBookingConfirmation, CategoryAdminAlert, CategoryApplicationReceipt, CategoryGeneric:
		return true
	}
	return false
}

const (
	// DefaultMaxAttempts is the retry budget applied when a producer does not set one.
	DefaultMaxAttempts = 3

	// MaxAllowedAttempts bounds the retry budget a producer may request.
	MaxAllowedAttempts = 20
)

// EmailRecord is one notification job in the store.
//
// Records are created by producers in StatusQueued with AttemptCount 0 and are
// mutated only by the delivery orchestrator afterwards. AttemptCount never
// exceeds MaxAttempts, and a record in StatusSent always has SentAt set.
type EmailRecord struct {
	ID                uuid.UUID
	Recipient         string
	Subject           string
	BodyHTML          string
	BodyText          string
	Category          Category
	Priority          int
	Status            Status
	AttemptCount      int
	MaxAttempts       int
	LastAttemptAt     *time.Time
	SentAt            *time.Time
	NextAttemptAt     *time.Time
	LastOutcomeDetail *OutcomeDetail
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsEligible reports whether the record may be selected by a batch at now.
func (r *EmailRecord) IsEligible(now time.Time) bool {
	if r.Status != StatusQueued && r.Status != StatusFailed {
		return false
	}
	if r.AttemptCount >= r.MaxAttempts {
		return false
	}
	return r.NextAttemptAt == nil || !r.NextAttemptAt.After(now)
}

// IsExhausted reports whether the record failed and has used its whole retry budget.
func (r *EmailRecord) IsExhausted() bool {
	return r.Status == StatusFailed && r.AttemptCount >= r.MaxAttempts
}

// IsTerminal reports whether the record will never be processed again.
func (r *EmailRecord) IsTerminal() bool {
	return r.Status == StatusSent || r.IsExhausted()
}

// MarkProcessing moves the record into the claimed state.
func (r *EmailRecord) MarkProcessing(now time.Time) {
	r.Status = StatusProcessing
	r.UpdatedAt = now
}

// MarkSent records a successful delivery.
func (r *EmailRecord) MarkSent(now time.Time, detail OutcomeDetail) {
	r.Status = StatusSent
	r.AttemptCount++
	r.LastAttemptAt = &now
	r.SentAt = &now
	r.NextAttemptAt = nil
	r.LastOutcomeDetail = &detail
	r.UpdatedAt = now
}

// MarkFailed records an attempt in which every provider failed. next, when
// non-nil, delays the next eligibility; it is ignored once the budget is spent.
func (r *EmailRecord) MarkFailed(now time.Time, detail OutcomeDetail, next *time.Time) {
	r.Status = StatusFailed
	r.AttemptCount++
	r.LastAttemptAt = &now
	r.LastOutcomeDetail = &detail
	r.NextAttemptAt = next
	if r.AttemptCount >= r.MaxAttempts {
		r.NextAttemptAt = nil
	}
	r.UpdatedAt = now
}

// Message builds the provider payload for the record.
func (r *EmailRecord) Message() Message {
	return Message{
		Recipient: r.Recipient,
		Subject:   r.Subject,
		BodyHTML:  r.BodyHTML,
		BodyText:  r.BodyText,
	}
}

// Message is what a provider transmits.
type Message struct {
	Recipient string
	Subject   string
	BodyHTML  string
	BodyText  string
}

// ListFilter narrows an inspection listing.
type ListFilter struct {
	Status        *Status
	ExhaustedOnly bool
}
