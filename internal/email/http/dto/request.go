// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	"github.com/allisson/maildispatch/internal/email/domain"
	customValidation "github.com/allisson/maildispatch/internal/validation"
)

// EnqueueEmailRequest contains the parameters for queueing an email.
type EnqueueEmailRequest struct {
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	BodyHTML    string `json:"body_html"`
	BodyText    string `json:"body_text"`
	Category    string `json:"category"`
	Priority    int    `json:"priority"`
	MaxAttempts int    `json:"max_attempts"`
}

// Validate checks the request shape. Business rules are enforced again by the use case.
func (r *EnqueueEmailRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Recipient, validation.Required, customValidation.Email),
		validation.Field(&r.Subject, validation.Required, customValidation.NotBlank),
		validation.Field(&r.BodyHTML, validation.Required),
		validation.Field(&r.MaxAttempts, validation.Min(0), validation.Max(domain.MaxAllowedAttempts)),
	)
}

// ToDomain converts the request into a use case input.
func (r *EnqueueEmailRequest) ToDomain() *domain.EnqueueInput {
	return &domain.EnqueueInput{
		Recipient:   r.Recipient,
		Subject:     r.Subject,
		BodyHTML:    r.BodyHTML,
		BodyText:    r.BodyText,
		Category:    domain.Category(r.Category),
		Priority:    r.Priority,
		MaxAttempts: r.MaxAttempts,
	}
}
