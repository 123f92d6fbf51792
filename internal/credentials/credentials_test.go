package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/maildispatch/internal/config"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	keeper, err := OpenKeeper(context.Background(), generateLocalSecretsURI(t))
	require.NoError(t, err)
	resolver := NewResolver(keeper)
	t.Cleanup(func() {
		assert.NoError(t, resolver.Close())
	})
	return resolver
}

func TestOpenKeeper_InvalidURI(t *testing.T) {
	keeper, err := OpenKeeper(context.Background(), "invalid://uri")
	assert.Error(t, err)
	assert.Nil(t, keeper)
	assert.Contains(t, err.Error(), "failed to open secrets keeper")
}

func TestResolver_RoundTrip(t *testing.T) {
	ctx := context.Background()
	resolver := newResolver(t)

	encrypted, err := resolver.Encrypt(ctx, "re_live_key")
	require.NoError(t, err)
	assert.True(t, IsEncrypted(encrypted))
	assert.NotContains(t, encrypted, "re_live_key")

	plain, err := resolver.Resolve(ctx, encrypted)
	require.NoError(t, err)
	assert.Equal(t, "re_live_key", plain)
}

func TestResolver_PlainValuePassesThrough(t *testing.T) {
	plain, err := NewResolver(nil).Resolve(context.Background(), "smtp-password")
	require.NoError(t, err)
	assert.Equal(t, "smtp-password", plain)
}

func TestResolver_EncryptedWithoutKeeper(t *testing.T) {
	resolver := NewResolver(nil)

	_, err := resolver.Resolve(context.Background(), "enc:AAAA")
	assert.ErrorIs(t, err, ErrNoKeeper)

	_, err = resolver.Encrypt(context.Background(), "secret")
	assert.ErrorIs(t, err, ErrNoKeeper)

	assert.NoError(t, resolver.Close())
}

func TestResolver_InvalidCiphertext(t *testing.T) {
	resolver := newResolver(t)

	_, err := resolver.Resolve(context.Background(), "enc:not base64!")
	assert.ErrorContains(t, err, "failed to decode encrypted credential")

	_, err = resolver.Resolve(context.Background(), "enc:"+base64.StdEncoding.EncodeToString([]byte("garbage")))
	assert.ErrorContains(t, err, "failed to decrypt credential")
}

func TestResolver_ResolveConfig(t *testing.T) {
	ctx := context.Background()
	resolver := newResolver(t)

	encryptedKey, err := resolver.Encrypt(ctx, "SG.secret")
	require.NoError(t, err)

	cfg := &config.Config{
		DBConnectionString: "postgres://localhost/maildispatch",
		SendGridAPIKey:     encryptedKey,
		SMTPPassword:       "plain",
	}
	require.NoError(t, resolver.ResolveConfig(ctx, cfg))

	assert.Equal(t, "SG.secret", cfg.SendGridAPIKey)
	assert.Equal(t, "plain", cfg.SMTPPassword)
	assert.Equal(t, "postgres://localhost/maildispatch", cfg.DBConnectionString)
}

func TestResolver_ResolveConfigNamesFailingField(t *testing.T) {
	cfg := &config.Config{ResendAPIKey: "enc:AAAA"}

	err := NewResolver(nil).ResolveConfig(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESEND_API_KEY")
}
