package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryAttempt is an append-only audit row for one provider call.
type DeliveryAttempt struct {
	ID            uuid.UUID
	EmailID       uuid.UUID
	AttemptNumber int
	Provider      string
	Success       bool
	ErrorClass    ErrorClass
	Reason        string
	CreatedAt     time.Time
}

// NewDeliveryAttempts converts the outcomes of one attempt into audit rows.
func NewDeliveryAttempts(emailID uuid.UUID, attemptNumber int, outcomes []Outcome, now time.Time) []*DeliveryAttempt {
	attempts := make([]*DeliveryAttempt, 0, len(outcomes))
	for _, o := range outcomes {
		attempts = append(attempts, &DeliveryAttempt{
			ID:            uuid.Must(uuid.NewV7()),
			EmailID:       emailID,
			AttemptNumber: attemptNumber,
			Provider:      o.Provider,
			Success:       o.Success,
			ErrorClass:    o.ErrorClass,
			Reason:        o.Reason,
			CreatedAt:     now,
		})
	}
	return attempts
}
