package provider

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/allisson/maildispatch/internal/email/domain"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGridConfig holds the SendGrid API settings.
type SendGridConfig struct {
	APIKey  string
	BaseURL string
	From    string
	Timeout time.Duration
}

// SendGrid delivers through the SendGrid v3 mail send API.
type SendGrid struct {
	apiKey  string
	host    string
	from    *mail.Address
	timeout time.Duration
}

// NewSendGrid builds a SendGrid provider.
func NewSendGrid(cfg SendGridConfig) (*SendGrid, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid provider: api key is required")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("sendgrid provider: invalid from address: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SendGrid{
		apiKey:  cfg.APIKey,
		host:    strings.TrimRight(cfg.BaseURL, "/"),
		from:    from,
		timeout: timeout,
	}, nil
}

// Name returns the provider name.
func (s *SendGrid) Name() string {
	return NameSendGrid
}

// Send performs one SendGrid API call. A request is built per call because the SDK
// client keeps the body on a shared struct.
func (s *SendGrid) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m := sgmail.NewSingleEmail(
		sgmail.NewEmail(s.from.Name, s.from.Address),
		msg.Subject,
		sgmail.NewEmail("", msg.Recipient),
		msg.BodyText,
		msg.BodyHTML,
	)

	request := sendgrid.GetRequest(s.apiKey, sendGridEndpoint, s.host)
	request.Method = rest.Post
	request.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return domain.Failed(NameSendGrid, classifyError(err), err.Error())
	}
	if !isSuccessStatus(resp.StatusCode) {
		return domain.Failedf(NameSendGrid, classifyStatus(resp.StatusCode), "status %d: %s",
			resp.StatusCode, truncate(strings.TrimSpace(resp.Body), 512))
	}

	detail := fmt.Sprintf("status %d", resp.StatusCode)
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		detail = ids[0]
	}
	return domain.Succeeded(NameSendGrid, detail)
}
