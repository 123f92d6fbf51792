package commands

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("invalid-driver", func(t *testing.T) {
		err := RunMigrations(logger, "invalid", "postgres://localhost")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create migrate instance")
	})

	t.Run("invalid-connection-string", func(t *testing.T) {
		err := RunMigrations(logger, "postgres", "invalid-connection-string")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create migrate instance")
	})
}

func TestMigrationURL(t *testing.T) {
	tests := []struct {
		driver   string
		dsn      string
		expected string
	}{
		{"postgres", "postgres://u:p@localhost:5432/db", "postgres://u:p@localhost:5432/db"},
		{"pgx", "postgres://u:p@localhost:5432/db", "postgres://u:p@localhost:5432/db"},
		{"mysql", "u:p@tcp(localhost:3306)/db", "mysql://u:p@tcp(localhost:3306)/db"},
		{"mysql", "mysql://u:p@tcp(localhost:3306)/db", "mysql://u:p@tcp(localhost:3306)/db"},
	}

	for _, tt := range tests {
		t.Run(tt.driver+"/"+tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.expected, migrationURL(tt.driver, tt.dsn))
		})
	}
}
