package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_create_quote.sql", "00002_create_dividend.sql"}, files)

	for _, name := range files {
		body, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		text := string(body)
		assert.True(t, strings.Contains(text, "-- +goose Up"), name)
		assert.True(t, strings.Contains(text, "-- +goose Down"), name)
		assert.Contains(t, text, "ReplacingMergeTree", name)
	}
}
