package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicesync/internal/logging"
)

const validKey = "0123456789abcdef-key"

func writeSettings(t *testing.T, s Settings) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	b, err := json.Marshal(s)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func readSettings(t *testing.T, path string) Settings {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var s Settings
	require.NoError(t, json.Unmarshal(b, &s))
	return s
}

func TestFileResolver_PrefixPath(t *testing.T) {
	ctx := context.Background()
	path := writeSettings(t, Settings{APIKey: validKey, Prefixes: []PrefixConfig{{Prefix: "RE", Path: "/data/re"}}})

	t.Run("cached answer", func(t *testing.T) {
		p := NewStaticPrompter()
		r := NewFileResolver(path, p, logging.Discard())

		got, err := r.PrefixPath(ctx, "RE")

		require.NoError(t, err)
		assert.Equal(t, "/data/re", got)
		assert.Empty(t, p.Asked)
	})

	t.Run("miss prompts once and persists", func(t *testing.T) {
		p := NewStaticPrompter("  /data/shop \n")
		r := NewFileResolver(path, p, logging.Discard())

		got, err := r.PrefixPath(ctx, "SHOP")
		require.NoError(t, err)
		assert.Equal(t, "/data/shop", got)

		again, err := r.PrefixPath(ctx, "SHOP")
		require.NoError(t, err)
		assert.Equal(t, "/data/shop", again)
		assert.Len(t, p.Asked, 1)
		assert.Contains(t, p.Asked[0], "SHOP")

		stored := readSettings(t, path)
		assert.Equal(t, validKey, stored.APIKey)
		assert.Contains(t, stored.Prefixes, PrefixConfig{Prefix: "SHOP", Path: "/data/shop"})
	})

	t.Run("empty answer", func(t *testing.T) {
		r := NewFileResolver(path, NewStaticPrompter(""), logging.Discard())

		_, err := r.PrefixPath(ctx, "NEW")
		assert.ErrorIs(t, err, ErrNoAnswer)
	})
}

func TestFileResolver_ContactID(t *testing.T) {
	ctx := context.Background()
	path := writeSettings(t, Settings{Contacts: []ContactConfig{{Address: "ACME GmbH\nBerlin", ContactID: "c-1"}}})

	p := NewStaticPrompter("c-2")
	r := NewFileResolver(path, p, logging.Discard())

	got, err := r.ContactID(ctx, "acme gmbh  Berlin")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got)
	assert.Empty(t, p.Asked)

	got, err = r.ContactID(ctx, "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "c-2", got)

	stored := readSettings(t, path)
	assert.Len(t, stored.Contacts, 2)
}

func TestFileResolver_APIKey(t *testing.T) {
	ctx := context.Background()

	t.Run("stored key", func(t *testing.T) {
		r := NewFileResolver(writeSettings(t, Settings{APIKey: validKey}), NewStaticPrompter(), logging.Discard())

		got, err := r.APIKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, validKey, got)
	})

	t.Run("missing file prompts and creates it", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "settings.json")
		p := NewStaticPrompter("short", validKey)
		r := NewFileResolver(path, p, logging.Discard())

		got, err := r.APIKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, validKey, got)
		assert.Len(t, p.Asked, 2)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
		assert.Equal(t, validKey, readSettings(t, path).APIKey)
	})

	t.Run("invalidate forces a new key", func(t *testing.T) {
		path := writeSettings(t, Settings{APIKey: validKey})
		p := NewStaticPrompter("fedcba9876543210-new")
		r := NewFileResolver(path, p, logging.Discard())

		require.NoError(t, r.InvalidateAPIKey(ctx))
		assert.Empty(t, readSettings(t, path).APIKey)

		got, err := r.APIKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fedcba9876543210-new", got)
	})
}

func TestFileResolver_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	r := NewFileResolver(path, NewStaticPrompter(), logging.Discard())

	_, err := r.APIKey(context.Background())
	assert.ErrorIs(t, err, ErrSettingsFile)
}

func TestFileResolver_Snapshot(t *testing.T) {
	path := writeSettings(t, Settings{APIKey: validKey, Prefixes: []PrefixConfig{{Prefix: "RE", Path: "/re"}}})
	r := NewFileResolver(path, NewStaticPrompter(), logging.Discard())

	s, err := r.Snapshot()
	require.NoError(t, err)
	assert.True(t, s.ValidAPIKey())
	s.Prefixes[0].Path = "changed"

	again, err := r.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "/re", again.Prefixes[0].Path)
}

func TestLinePrompter(t *testing.T) {
	var out strings.Builder
	p := NewLinePrompter(strings.NewReader("first\r\nsecond"), &out)

	a, err := p.Ask(context.Background(), "Q1?")
	require.NoError(t, err)
	assert.Equal(t, "first", a)

	b, err := p.Ask(context.Background(), "Q2?")
	require.NoError(t, err)
	assert.Equal(t, "second", b)

	assert.Equal(t, "Q1?\nQ2?\n", out.String())

	_, err = p.Ask(context.Background(), "Q3?")
	assert.Error(t, err)
}

func TestLinePrompter_ContextCancelled(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pw.Close()
	defer pr.Close()

	p := NewLinePrompter(pr, &strings.Builder{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Ask(ctx, "waiting forever?")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
