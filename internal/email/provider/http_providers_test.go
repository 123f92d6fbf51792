package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/maildispatch/internal/email/domain"
)

var testMessage = domain.Message{
	Recipient: "a@example.com",
	Subject:   "Booking Confirmed",
	BodyHTML:  "<p>see you</p>",
	BodyText:  "see you",
}

func TestResend_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/emails", r.URL.Path)
			assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "noreply@example.com", body["from"])
			assert.Equal(t, []any{"a@example.com"}, body["to"])
			assert.Equal(t, "Booking Confirmed", body["subject"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"re_123"}`))
		}))
		defer server.Close()

		p, err := NewResend(ResendConfig{APIKey: "re_test", BaseURL: server.URL, From: "noreply@example.com"})
		require.NoError(t, err)

		outcome := p.Send(context.Background(), testMessage)

		assert.True(t, outcome.Success, outcome.Reason)
		assert.Equal(t, NameResend, outcome.Provider)
		assert.Equal(t, "re_123", outcome.Detail)
	})

	tests := []struct {
		name     string
		status   int
		body     string
		expected domain.ErrorClass
	}{
		{"unauthorized", http.StatusUnauthorized, `{"statusCode":401,"name":"missing_api_key","message":"bad key"}`, domain.ErrorClassAuth},
		{"rate limited", http.StatusTooManyRequests, `{"statusCode":429,"name":"rate_limit_exceeded","message":"slow down"}`, domain.ErrorClassRateLimited},
		{"validation error", http.StatusUnprocessableEntity, `{"statusCode":422,"name":"validation_error","message":"bad to"}`, domain.ErrorClassRejected},
		{"garbage on success", http.StatusOK, `not json`, domain.ErrorClassMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p, err := NewResend(ResendConfig{APIKey: "re_test", BaseURL: server.URL, From: "noreply@example.com"})
			require.NoError(t, err)

			outcome := p.Send(context.Background(), testMessage)

			assert.False(t, outcome.Success)
			assert.Equal(t, tt.expected, outcome.ErrorClass)
		})
	}
}

func TestNewResend_Validation(t *testing.T) {
	_, err := NewResend(ResendConfig{From: "noreply@example.com"})
	assert.Error(t, err)

	_, err = NewResend(ResendConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestSendGrid_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v3/mail/send", r.URL.Path)
			assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))

			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"email":"a@example.com"`)
			assert.Contains(t, string(raw), `"subject":"Booking Confirmed"`)
			assert.Contains(t, string(raw), `"type":"text/html"`)

			w.Header().Set("X-Message-Id", "sg-42")
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		p, err := NewSendGrid(SendGridConfig{APIKey: "SG.test", BaseURL: server.URL, From: "Rides <noreply@example.com>"})
		require.NoError(t, err)

		outcome := p.Send(context.Background(), testMessage)

		assert.True(t, outcome.Success, outcome.Reason)
		assert.Equal(t, "sg-42", outcome.Detail)
	})

	tests := []struct {
		name     string
		status   int
		expected domain.ErrorClass
	}{
		{"forbidden", http.StatusForbidden, domain.ErrorClassAuth},
		{"too many requests", http.StatusTooManyRequests, domain.ErrorClassRateLimited},
		{"bad request", http.StatusBadRequest, domain.ErrorClassRejected},
		{"server error", http.StatusInternalServerError, domain.ErrorClassRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errors":[{"message":"nope"}]}`))
			}))
			defer server.Close()

			p, err := NewSendGrid(SendGridConfig{APIKey: "SG.test", BaseURL: server.URL, From: "noreply@example.com"})
			require.NoError(t, err)

			outcome := p.Send(context.Background(), testMessage)

			assert.False(t, outcome.Success)
			assert.Equal(t, tt.expected, outcome.ErrorClass)
			assert.Contains(t, outcome.Reason, "nope")
		})
	}
}

func TestSupabase_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/invite", r.URL.Path)
			assert.Equal(t, "https://rides.example.com/welcome", r.URL.Query().Get("redirect_to"))
			assert.Equal(t, "service-key", r.Header.Get("apikey"))
			assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

			var body struct {
				Email string            `json:"email"`
				Data  map[string]string `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a@example.com", body.Email)
			assert.Equal(t, "Booking Confirmed", body.Data["notification_subject"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"5f0c6a4e-8a51-4d2b-9a3e-1c2d3e4f5a6b","email":"a@example.com"}`))
		}))
		defer server.Close()

		p, err := NewSupabase(SupabaseConfig{
			URL:            server.URL,
			ServiceRoleKey: "service-key",
			RedirectURL:    "https://rides.example.com/welcome",
		})
		require.NoError(t, err)

		outcome := p.Send(context.Background(), testMessage)

		assert.True(t, outcome.Success, outcome.Reason)
		assert.Equal(t, "5f0c6a4e-8a51-4d2b-9a3e-1c2d3e4f5a6b", outcome.Detail)
	})

	t.Run("already registered", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"msg":"A user with this email address has already been registered"}`))
		}))
		defer server.Close()

		p, err := NewSupabase(SupabaseConfig{URL: server.URL, ServiceRoleKey: "service-key"})
		require.NoError(t, err)

		outcome := p.Send(context.Background(), testMessage)

		assert.False(t, outcome.Success)
		assert.Equal(t, domain.ErrorClassRejected, outcome.ErrorClass)
		assert.Contains(t, outcome.Reason, "already been registered")
	})

	t.Run("malformed response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		p, err := NewSupabase(SupabaseConfig{URL: server.URL, ServiceRoleKey: "service-key"})
		require.NoError(t, err)

		outcome := p.Send(context.Background(), testMessage)

		assert.Equal(t, domain.ErrorClassMalformedResponse, outcome.ErrorClass)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		p, err := NewSupabase(SupabaseConfig{URL: server.URL, ServiceRoleKey: "k", Timeout: 20 * time.Millisecond})
		require.NoError(t, err)

		outcome := p.Send(context.Background(), testMessage)

		assert.False(t, outcome.Success)
		assert.Equal(t, domain.ErrorClassTimeout, outcome.ErrorClass)
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		p, err := NewSupabase(SupabaseConfig{URL: url, ServiceRoleKey: "k"})
		require.NoError(t, err)

		outcome := p.Send(context.Background(), testMessage)

		assert.False(t, outcome.Success)
		assert.Equal(t, domain.ErrorClassConnection, outcome.ErrorClass)
	})
}
