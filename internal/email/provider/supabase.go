package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/allisson/maildispatch/internal/email/domain"
)

const nilUserID = "00000000-0000-0000-0000-000000000000"

// SupabaseConfig holds the identity provider settings.
type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	RedirectURL    string
	Timeout        time.Duration
}

// Supabase is the last-resort side channel: it asks Supabase Auth to send an invite
// email to the recipient with the message carried as user metadata. The identity
// provider owns the template, so delivery of the exact body is not guaranteed.
type Supabase struct {
	auth        gotrue.Client
	redirectURL string
	timeout     time.Duration
	transport   http.RoundTripper
}

// NewSupabase builds the side-channel provider.
func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("supabase provider: url is required")
	}
	if strings.TrimSpace(cfg.ServiceRoleKey) == "" {
		return nil, fmt.Errorf("supabase provider: service role key is required")
	}

	base := strings.TrimRight(cfg.URL, "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("supabase provider: invalid url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	auth := gotrue.New("", cfg.ServiceRoleKey).
		WithCustomGoTrueURL(base + "/auth/v1").
		WithToken(cfg.ServiceRoleKey)

	return &Supabase{
		auth:        auth,
		redirectURL: cfg.RedirectURL,
		timeout:     timeout,
		transport:   http.DefaultTransport,
	}, nil
}

// Name returns the provider name.
func (s *Supabase) Name() string {
	return NameSupabase
}

// Send performs one invite call.
func (s *Supabase) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The auth client has no context parameter, so each send gets its own
	// transport bound to ctx.
	rt := &inviteTransport{ctx: ctx, base: s.transport, redirectURL: s.redirectURL}
	resp, err := s.auth.WithClient(http.Client{Transport: rt}).Invite(types.InviteRequest{
		Email: msg.Recipient,
		Data: map[string]interface{}{
			"notification_subject": msg.Subject,
			"notification_html":    msg.BodyHTML,
		},
	})

	status, body, transportErr := rt.result()
	switch {
	case transportErr != nil:
		if ctx.Err() != nil {
			return domain.Failed(NameSupabase, domain.ErrorClassTimeout, transportErr.Error())
		}
		return domain.Failed(NameSupabase, classifyError(transportErr), transportErr.Error())
	case status != 0 && !isSuccessStatus(status):
		return domain.Failedf(NameSupabase, classifyStatus(status), "status %d: %s", status, truncate(body, 512))
	case err != nil:
		return domain.Failedf(NameSupabase, domain.ErrorClassMalformedResponse, "invite: %v", err)
	case resp == nil:
		return domain.Failed(NameSupabase, domain.ErrorClassMalformedResponse, "empty invite response")
	}

	id := resp.ID.String()
	if id == "" || id == nilUserID {
		return domain.Failed(NameSupabase, domain.ErrorClassMalformedResponse, "invite response without user id")
	}

	return domain.Succeeded(NameSupabase, id)
}

// inviteTransport binds invite requests to a send context, adds the redirect
// target and keeps the raw status and error body for classification.
type inviteTransport struct {
	ctx         context.Context
	base        http.RoundTripper
	redirectURL string

	mu     sync.Mutex
	status int
	body   string
	err    error
}

func (t *inviteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(t.ctx)
	if t.redirectURL != "" {
		q := req.URL.Query()
		q.Set("redirect_to", t.redirectURL)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		return nil, err
	}

	var body string
	if !isSuccessStatus(resp.StatusCode) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		body = strings.TrimSpace(string(raw))
		resp.Body = io.NopCloser(bytes.NewReader(raw))
	}

	t.mu.Lock()
	t.status = resp.StatusCode
	t.body = body
	t.mu.Unlock()
	return resp, nil
}

func (t *inviteTransport) result() (int, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.body, t.err
}
