package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// ResendConfig holds the Resend API settings.
type ResendConfig struct {
	APIKey  string
	BaseURL string
	From    string
	Timeout time.Duration
}

// Resend delivers through the Resend HTTP API.
type Resend struct {
	client  *resend.Client
	from    string
	timeout time.Duration
}

// NewResend builds a Resend provider. The HTTP client records response status codes
// so failures can be classified.
func NewResend(cfg ResendConfig) (*Resend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("resend provider: api key is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("resend provider: from address is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &statusRecorder{next: http.DefaultTransport},
	}
	client := resend.NewCustomClient(httpClient, cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("resend provider: invalid base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Resend{client: client, from: cfg.From, timeout: timeout}, nil
}

// Name returns the provider name.
func (r *Resend) Name() string {
	return NameResend
}

// Send performs one Resend API call.
func (r *Resend) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctx, status := withStatusCapture(ctx)

	resp, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.Recipient},
		Subject: msg.Subject,
		Html:    msg.BodyHTML,
		Text:    msg.BodyText,
	})
	if err != nil {
		class := classifyError(err)
		if status.code != 0 && !isSuccessStatus(status.code) {
			class = classifyStatus(status.code)
		} else if status.code != 0 {
			class = domain.ErrorClassMalformedResponse
		}
		return domain.Failed(NameResend, class, truncate(err.Error(), 512))
	}
	if resp == nil || resp.Id == "" {
		return domain.Failed(NameResend, domain.ErrorClassMalformedResponse, "response without message id")
	}

	return domain.Succeeded(NameResend, resp.Id)
}

type statusKey struct{}

// capturedStatus receives the HTTP status of the request made with its context.
type capturedStatus struct {
	code int
}

func withStatusCapture(ctx context.Context) (context.Context, *capturedStatus) {
	s := &capturedStatus{}
	return context.WithValue(ctx, statusKey{}, s), s
}

// statusRecorder is an http.RoundTripper that writes the response status into the
// request context's capturedStatus, if any.
type statusRecorder struct {
	next http.RoundTripper
}

func (s *statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.next.RoundTrip(req)
	if err == nil {
		if c, ok := req.Context().Value(statusKey{}).(*capturedStatus); ok {
			c.code = resp.StatusCode
		}
	}
	return resp, err
}
