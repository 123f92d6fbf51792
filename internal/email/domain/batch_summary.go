package domain

import "github.com/google/uuid"

// RecordResult is the per-record line of a BatchSummary.
type RecordResult struct {
	ID           uuid.UUID `json:"id"`
	Status       Status    `json:"status"`
	Provider     string    `json:"provider,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	Exhausted    bool      `json:"exhausted"`
	Reason       string    `json:"reason,omitempty"`
}

// BatchSummary is the result of one batch run. It is never persisted.
type BatchSummary struct {
	Processed  int            `json:"processed"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Results    []RecordResult `json:"results"`
}

// NewBatchSummary returns an empty summary.
func NewBatchSummary() *BatchSummary {
	return &BatchSummary{Results: []RecordResult{}}
}

// Add counts a record that went through delivery.
func (s *BatchSummary) Add(r *EmailRecord) {
	s.Processed++
	result := RecordResult{
		ID:           r.ID,
		Status:       r.Status,
		AttemptCount: r.AttemptCount,
		Exhausted:    r.IsExhausted(),
	}
	if r.LastOutcomeDetail != nil {
		result.Provider = r.LastOutcomeDetail.Provider
	}
	if r.Status == StatusSent {
		s.Successful++
	} else {
		s.Failed++
		if r.LastOutcomeDetail != nil {
			result.Reason = r.LastOutcomeDetail.Reason
		}
	}
	s.Results = append(s.Results, result)
}

// Skip counts a record whose claim was taken by a concurrent run.
func (s *BatchSummary) Skip() {
	s.Skipped++
}
