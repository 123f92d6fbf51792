// Package validation provides custom validation rules for the application.
package validation

import (
	"net/mail"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/maildispatch/internal/errors"
)

var (
	// emailRegex is a basic email validation pattern
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Email validates email format using regex
var Email = validation.NewStringRuleWithError(
	func(s string) bool {
		return emailRegex.MatchString(s)
	},
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// MailAddress validates a sender address that may carry a display name,
// such as "Rides <noreply@example.com>".
var MailAddress = validation.NewStringRuleWithError(
	func(s string) bool {
		addr, err := mail.ParseAddress(s)
		return err == nil && emailRegex.MatchString(addr.Address)
	},
	validation.NewError("validation_mail_address", "must be a valid mail address"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// SingleLine rejects CR and LF, which would let a value inject mail headers.
var SingleLine = validation.NewStringRuleWithError(
	func(s string) bool {
		return !strings.ContainsAny(s, "\r\n")
	},
	validation.NewError("validation_single_line", "must not contain line breaks"),
)
