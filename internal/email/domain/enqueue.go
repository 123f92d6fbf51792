package domain

// EnqueueInput is what a producer supplies to queue an email. Zero values for
// Category and MaxAttempts select the defaults.
type EnqueueInput struct {
	Recipient   string
	Subject     string
	BodyHTML    string
	BodyText    string
	Category    Category
	Priority    int
	MaxAttempts int
}
