package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/textproto"
	"syscall"

	"github.com/wneessen/go-mail"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// classifyError maps a transport error to an ErrorClass.
func classifyError(err error) domain.ErrorClass {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ErrorClassTimeout
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return classifySMTPCode(tpErr.Code)
	}

	var sendErr *mail.SendError
	if errors.As(err, &sendErr) {
		switch {
		case sendErr.Reason == mail.ErrConnCheck:
			return domain.ErrorClassConnection
		case sendErr.IsTemp():
			return domain.ErrorClassRateLimited
		default:
			return domain.ErrorClassRejected
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrorClassTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return domain.ErrorClassConnection
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.ErrorClassConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.ErrorClassConnection
	}

	return domain.ErrorClassUnknown
}

func classifySMTPCode(code int) domain.ErrorClass {
	switch code {
	case 421:
		return domain.ErrorClassConnection
	case 450, 451, 452:
		return domain.ErrorClassRateLimited
	case 530, 534, 535, 538:
		return domain.ErrorClassAuth
	default:
		return domain.ErrorClassRejected
	}
}

// classifyStatus maps a non-2xx HTTP status to an ErrorClass.
func classifyStatus(code int) domain.ErrorClass {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrorClassAuth
	case code == http.StatusTooManyRequests:
		return domain.ErrorClassRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return domain.ErrorClassTimeout
	case code >= 400:
		return domain.ErrorClassRejected
	default:
		return domain.ErrorClassMalformedResponse
	}
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// truncate keeps provider responses short enough for the outcome detail column.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
