// Package provider implements the transports an email can be delivered through.
//
// Every provider makes exactly one attempt per Send call and reports the result as a
// domain.Outcome. Transport errors never escape as Go errors and retries are left to
// the delivery orchestrator.
package provider

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// Provider names, also used as configuration keys and metric labels.
const (
	NameSMTP     = "smtp"
	NameResend   = "resend"
	NameSendGrid = "sendgrid"
	NameSupabase = "supabase"
	NameLog      = "log"
)

// Provider transmits a message through one transport.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg domain.Message) domain.Outcome
}

// Chain is the ordered fallback list used by the orchestrator. It is immutable after
// construction and safe to share between concurrent batches.
type Chain struct {
	providers []Provider
}

// NewChain returns a chain trying providers in the given order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: slices.Clone(providers)}
}

// Providers returns a copy of the ordered providers.
func (c *Chain) Providers() []Provider {
	return slices.Clone(c.providers)
}

// Names returns the provider names in order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return names
}

// Len returns the number of providers.
func (c *Chain) Len() int {
	return len(c.providers)
}

// Arrange orders the enabled providers for fallback: the mail relay first, then the
// HTTP APIs in apiOrder, then the identity-provider side channel, then the log provider.
// HTTP APIs missing from apiOrder keep their default relative order after the listed ones.
func Arrange(enabled map[string]Provider, apiOrder []string) (*Chain, error) {
	ordered := make([]Provider, 0, len(enabled))
	if p, ok := enabled[NameSMTP]; ok {
		ordered = append(ordered, p)
	}

	seen := map[string]bool{}
	for _, raw := range apiOrder {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case NameSMTP, NameSupabase:
			// Fixed positions; listing them in the order is allowed but has no effect.
			continue
		case NameResend, NameSendGrid:
		default:
			return nil, fmt.Errorf("unknown email provider %q in provider order", raw)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if p, ok := enabled[name]; ok {
			ordered = append(ordered, p)
		}
	}
	for _, name := range []string{NameResend, NameSendGrid} {
		if p, ok := enabled[name]; ok && !seen[name] {
			ordered = append(ordered, p)
		}
	}

	if p, ok := enabled[NameSupabase]; ok {
		ordered = append(ordered, p)
	}
	if p, ok := enabled[NameLog]; ok {
		ordered = append(ordered, p)
	}

	if len(ordered) == 0 {
		return nil, fmt.Errorf("no email provider enabled")
	}

	return NewChain(ordered...), nil
}
