package helper

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 1000 {
		id, err := GenerateUUID()
		require.NoError(t, err)
		require.True(t, IsUUID(id))
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("3f2b8c1e-9d4a-4b6f-8e2a-1c5d7e9f0a1b"))
	assert.False(t, IsUUID(""))
	assert.False(t, IsUUID("../etc"))
	assert.False(t, IsUUID("{3f2b8c1e-9d4a-4b6f-8e2a-1c5d7e9f0a1b}"))
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"chunks_processed": 3})
	assert.JSONEq(t, `{"chunks_processed": 3}`, buf.String())
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", "json", &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger.Debug().Str("file_id", "abc").Msg("Ingesting")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["file_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestCreateFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, CreateFolder(dir))
	assert.DirExists(t, dir)
	assert.NoError(t, CreateFolder(""))
}
