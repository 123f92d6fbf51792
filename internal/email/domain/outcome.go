package domain

import "fmt"

// ErrorClass categorizes a provider failure.
type ErrorClass string

const (
	ErrorClassConnection        ErrorClass = "connection"
	ErrorClassAuth              ErrorClass = "auth"
	ErrorClassRejected          ErrorClass = "rejected"
	ErrorClassMalformedResponse ErrorClass = "malformed_response"
	ErrorClassTimeout           ErrorClass = "timeout"
	ErrorClassRateLimited       ErrorClass = "rate_limited"
	ErrorClassUnknown           ErrorClass = "unknown"
)

// Outcome is the result of a single provider attempt: either a success carrying
// a provider-specific detail (message id, status line) or a failure with a class and reason.
type Outcome struct {
	Provider   string
	Success    bool
	Detail     string
	ErrorClass ErrorClass
	Reason     string
}

// Succeeded builds a successful outcome.
func Succeeded(provider, detail string) Outcome {
	return Outcome{Provider: provider, Success: true, Detail: detail}
}

// Failed builds a failed outcome.
func Failed(provider string, class ErrorClass, reason string) Outcome {
	if class == "" {
		class = ErrorClassUnknown
	}
	return Outcome{Provider: provider, ErrorClass: class, Reason: reason}
}

// Failedf is Failed with a formatted reason.
func Failedf(provider string, class ErrorClass, format string, args ...any) Outcome {
	return Failed(provider, class, fmt.Sprintf(format, args...))
}

// ProviderAttempt is the persisted trace of one provider call inside an attempt.
type ProviderAttempt struct {
	Provider   string     `json:"provider"`
	Success    bool       `json:"success"`
	ErrorClass ErrorClass `json:"error_class,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// OutcomeDetail is stored as the record's last outcome. Provider, ErrorClass and
// Reason describe the deciding outcome: the success, or the last failure.
type OutcomeDetail struct {
	Provider   string            `json:"provider"`
	ErrorClass ErrorClass        `json:"error_class,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Attempts   []ProviderAttempt `json:"attempts"`
}

// NewOutcomeDetail summarizes the ordered outcomes of one delivery attempt.
func NewOutcomeDetail(outcomes []Outcome) OutcomeDetail {
	detail := OutcomeDetail{Attempts: make([]ProviderAttempt, 0, len(outcomes))}
	for _, o := range outcomes {
		detail.Attempts = append(detail.Attempts, ProviderAttempt{
			Provider:   o.Provider,
			Success:    o.Success,
			ErrorClass: o.ErrorClass,
			Reason:     o.Reason,
			Detail:     o.Detail,
		})
	}
	if len(outcomes) == 0 {
		detail.ErrorClass = ErrorClassUnknown
		detail.Reason = "no providers configured"
		return detail
	}
	last := outcomes[len(outcomes)-1]
	detail.Provider = last.Provider
	detail.ErrorClass = last.ErrorClass
	detail.Reason = last.Reason
	return detail
}
