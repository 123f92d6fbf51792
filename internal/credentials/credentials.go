// Package credentials resolves provider credentials that are stored encrypted in the
// environment. A value prefixed with "enc:" holds base64 ciphertext produced by the
// keeper configured in SECRETS_KEEPER_URI; any other value is used as is.
package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocloud.dev/secrets"

	"github.com/allisson/maildispatch/internal/config"

	// Register the keeper drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// EncryptedPrefix marks an encrypted configuration value.
const EncryptedPrefix = "enc:"

// ErrNoKeeper is returned when an encrypted value is found but no keeper is configured.
var ErrNoKeeper = errors.New("encrypted credential found but SECRETS_KEEPER_URI is not set")

// Keeper is the part of *secrets.Keeper used here.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// OpenKeeper opens a gocloud keeper. Supports gcpkms://, awskms://, azurekeyvault://,
// hashivault:// and base64key://.
func OpenKeeper(ctx context.Context, uri string) (Keeper, error) {
	keeper, err := secrets.OpenKeeper(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open secrets keeper: %w", err)
	}
	return keeper, nil
}

// Resolver decrypts "enc:" values. A Resolver without a keeper passes plain values
// through and rejects encrypted ones.
type Resolver struct {
	keeper Keeper
}

// NewResolver creates a Resolver. keeper may be nil.
func NewResolver(keeper Keeper) *Resolver {
	return &Resolver{keeper: keeper}
}

// IsEncrypted reports whether value carries the encrypted prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// Resolve returns the plaintext of value.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if r.keeper == nil {
		return "", ErrNoKeeper
	}

	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted credential: %w", err)
	}
	plaintext, err := r.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}

// Encrypt returns the "enc:" form of plaintext.
func (r *Resolver) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if r.keeper == nil {
		return "", ErrNoKeeper
	}
	ciphertext, err := r.keeper.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// ResolveConfig decrypts the secret-bearing fields of cfg in place.
func (r *Resolver) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"DB_CONNECTION_STRING", &cfg.DBConnectionString},
		{"SMTP_PASSWORD", &cfg.SMTPPassword},
		{"RESEND_API_KEY", &cfg.ResendAPIKey},
		{"SENDGRID_API_KEY", &cfg.SendGridAPIKey},
		{"SUPABASE_SERVICE_ROLE_KEY", &cfg.SupabaseServiceRoleKey},
	}

	for _, f := range fields {
		plain, err := r.Resolve(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = plain
	}
	return nil
}

// Close releases the keeper.
func (r *Resolver) Close() error {
	if r.keeper == nil {
		return nil
	}
	return r.keeper.Close()
}
