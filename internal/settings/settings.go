// Package settings owns the operator-maintained answers the sync needs: the API key, the
// folder per invoice prefix and the remote contact per billing address. Missing answers
// are asked for once and written back to the settings file.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"invoicesync/internal/logging"
)

// MinAPIKeyLength is the shortest key accepted as plausible.
const MinAPIKeyLength = 16

var (
	ErrNoAnswer     = errors.New("no answer given")
	ErrSettingsFile = errors.New("settings file unusable")
)

// Resolver answers the lookups the uploader cannot make on its own.
type Resolver interface {
	PrefixPath(ctx context.Context, prefix string) (string, error)
	ContactID(ctx context.Context, address string) (string, error)
	APIKey(ctx context.Context) (string, error)
	// InvalidateAPIKey drops the current key so the next APIKey call acquires a fresh one.
	InvalidateAPIKey(ctx context.Context) error
}

type PrefixConfig struct {
	Prefix string `json:"prefix"`
	Path   string `json:"path"`
}

type ContactConfig struct {
	Address   string `json:"address"`
	ContactID string `json:"contact_id"`
}

// Settings is the on-disk document.
type Settings struct {
	APIKey   string          `json:"api_key"`
	Prefixes []PrefixConfig  `json:"prefixes"`
	Contacts []ContactConfig `json:"contacts"`
}

// ValidAPIKey reports whether the stored key looks usable.
func (s Settings) ValidAPIKey() bool {
	return len(s.APIKey) >= MinAPIKeyLength
}

// FileResolver is a Resolver backed by a JSON settings file and a Prompter.
// It is safe for concurrent use.
type FileResolver struct {
	path   string
	prompt Prompter
	log    *slog.Logger

	mu     sync.Mutex
	loaded bool
	cur    Settings
}

// NewFileResolver creates a resolver persisting to path. The file is read on first use.
func NewFileResolver(path string, prompt Prompter, logger *slog.Logger) *FileResolver {
	return &FileResolver{path: path, prompt: prompt, log: logging.Component(logger, "settings")}
}

var _ Resolver = (*FileResolver)(nil)

// Snapshot returns a copy of the current settings, loading them if needed.
func (r *FileResolver) Snapshot() (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return Settings{}, err
	}
	out := r.cur
	out.Prefixes = append([]PrefixConfig(nil), r.cur.Prefixes...)
	out.Contacts = append([]ContactConfig(nil), r.cur.Contacts...)
	return out, nil
}

func (r *FileResolver) PrefixPath(ctx context.Context, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return "", err
	}
	for _, p := range r.cur.Prefixes {
		if p.Prefix == prefix {
			return p.Path, nil
		}
	}

	r.log.Info("unknown invoice prefix, asking operator", "event", "prompt_prefix", "prefix", prefix)
	path, err := r.ask(ctx, fmt.Sprintf("Got a new prefix: %s. Please enter the folder holding its invoices:", prefix))
	if err != nil {
		return "", err
	}
	r.cur.Prefixes = append(r.cur.Prefixes, PrefixConfig{Prefix: prefix, Path: path})
	if err := r.storeLocked(); err != nil {
		return "", err
	}
	return path, nil
}

func (r *FileResolver) ContactID(ctx context.Context, address string) (string, error) {
	key := normalizeAddress(address)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return "", err
	}
	for _, c := range r.cur.Contacts {
		if normalizeAddress(c.Address) == key {
			return c.ContactID, nil
		}
	}

	r.log.Info("unknown billing address, asking operator", "event", "prompt_contact", "address", address)
	id, err := r.ask(ctx, fmt.Sprintf("Got a new billing address:\n%s\nPlease enter the contact id to book it against:", address))
	if err != nil {
		return "", err
	}
	r.cur.Contacts = append(r.cur.Contacts, ContactConfig{Address: address, ContactID: id})
	if err := r.storeLocked(); err != nil {
		return "", err
	}
	return id, nil
}

func (r *FileResolver) APIKey(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return "", err
	}
	if r.cur.ValidAPIKey() {
		return r.cur.APIKey, nil
	}

	r.log.Info("getting api key from operator", "event", "prompt_api_key")
	for {
		key, err := r.ask(ctx, "Please enter your API key and confirm with enter:")
		if err != nil {
			return "", err
		}
		if len(key) >= MinAPIKeyLength {
			r.cur.APIKey = key
			break
		}
		r.log.Warn("api key too short", "event", "api_key_rejected", "length", len(key))
	}
	if err := r.storeLocked(); err != nil {
		return "", err
	}
	return r.cur.APIKey, nil
}

func (r *FileResolver) InvalidateAPIKey(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return err
	}
	r.log.Warn("api key rejected by remote, discarding it", "event", "api_key_invalidated")
	r.cur.APIKey = ""
	return r.storeLocked()
}

func (r *FileResolver) ask(ctx context.Context, question string) (string, error) {
	answer, err := r.prompt.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrNoAnswer
	}
	return answer, nil
}

func (r *FileResolver) loadLocked() error {
	if r.loaded {
		return nil
	}
	b, err := os.ReadFile(r.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.cur = Settings{}
	case err != nil:
		return fmt.Errorf("%w: %v", ErrSettingsFile, err)
	default:
		if err := json.Unmarshal(b, &r.cur); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSettingsFile, r.path, err)
		}
	}
	r.loaded = true
	return nil
}

// storeLocked rewrites the settings file through a temp file so a crash never truncates it.
func (r *FileResolver) storeLocked() error {
	b, err := json.MarshalIndent(r.cur, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsFile, err)
	}
	tmp, err := os.CreateTemp(dir, ".settings.*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsFile, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrSettingsFile, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrSettingsFile, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsFile, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsFile, err)
	}
	return nil
}

func normalizeAddress(a string) string {
	return strings.ToLower(strings.Join(strings.Fields(a), " "))
}
