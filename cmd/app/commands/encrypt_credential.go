package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Encrypter seals a plaintext credential into its "enc:" configuration form.
type Encrypter interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
}

// RunEncryptCredential prints the encrypted form of a credential, ready to be used as
// the value of SMTP_PASSWORD, RESEND_API_KEY and the other secret-bearing keys.
//
// Requirements: SECRETS_KEEPER_URI must be set.
func RunEncryptCredential(ctx context.Context, encrypter Encrypter, writer io.Writer, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("value must not be empty")
	}

	sealed, err := encrypter.Encrypt(ctx, value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	_, _ = fmt.Fprintln(writer, sealed)
	return nil
}
