package dto

import (
	"time"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// EmailResponse represents an email record in API responses. Bodies are omitted.
type EmailResponse struct {
	ID                string                `json:"id"`
	Recipient         string                `json:"recipient"`
	Subject           string                `json:"subject"`
	Category          string                `json:"category"`
	Priority          int                   `json:"priority"`
	Status            string                `json:"status"`
	AttemptCount      int                   `json:"attempt_count"`
	MaxAttempts       int                   `json:"max_attempts"`
	Exhausted         bool                  `json:"exhausted"`
	LastAttemptAt     *time.Time            `json:"last_attempt_at,omitempty"`
	SentAt            *time.Time            `json:"sent_at,omitempty"`
	NextAttemptAt     *time.Time            `json:"next_attempt_at,omitempty"`
	LastOutcomeDetail *domain.OutcomeDetail `json:"last_outcome_detail,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// MapEmailToResponse converts a domain record to an API response.
func MapEmailToResponse(record *domain.EmailRecord) EmailResponse {
	return EmailResponse{
		ID:                record.ID.String(),
		Recipient:         record.Recipient,
		Subject:           record.Subject,
		Category:          string(record.Category),
		Priority:          record.Priority,
		Status:            string(record.Status),
		AttemptCount:      record.AttemptCount,
		MaxAttempts:       record.MaxAttempts,
		Exhausted:         record.IsExhausted(),
		LastAttemptAt:     record.LastAttemptAt,
		SentAt:            record.SentAt,
		NextAttemptAt:     record.NextAttemptAt,
		LastOutcomeDetail: record.LastOutcomeDetail,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

// ListEmailsResponse represents a paginated list of email records.
type ListEmailsResponse struct {
	Data []EmailResponse `json:"data"`
}

// MapEmailsToListResponse converts domain records to a list response.
func MapEmailsToListResponse(records []*domain.EmailRecord) ListEmailsResponse {
	data := make([]EmailResponse, 0, len(records))
	for _, record := range records {
		data = append(data, MapEmailToResponse(record))
	}
	return ListEmailsResponse{Data: data}
}

// DeliveryAttemptResponse represents one provider call in API responses.
type DeliveryAttemptResponse struct {
	ID            string    `json:"id"`
	AttemptNumber int       `json:"attempt_number"`
	Provider      string    `json:"provider"`
	Success       bool      `json:"success"`
	ErrorClass    string    `json:"error_class,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListDeliveryAttemptsResponse is the audit trail of an email.
type ListDeliveryAttemptsResponse struct {
	Data []DeliveryAttemptResponse `json:"data"`
}

// MapAttemptsToListResponse converts domain attempts to a list response.
func MapAttemptsToListResponse(attempts []*domain.DeliveryAttempt) ListDeliveryAttemptsResponse {
	data := make([]DeliveryAttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		data = append(data, DeliveryAttemptResponse{
			ID:            a.ID.String(),
			AttemptNumber: a.AttemptNumber,
			Provider:      a.Provider,
			Success:       a.Success,
			ErrorClass:    string(a.ErrorClass),
			Reason:        a.Reason,
			CreatedAt:     a.CreatedAt,
		})
	}
	return ListDeliveryAttemptsResponse{Data: data}
}
