package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// KeySource supplies the current API key. Clients ask on every call so a
// rotated key takes effect without a restart.
type KeySource interface {
	APIKey() string
}

// StaticKey is a KeySource that never changes.
type StaticKey string

// APIKey implements KeySource.
func (k StaticKey) APIKey() string {
	return string(k)
}

// Refresher re-reads an API key file on an interval. Short-lived provider
// credentials are rotated by an external agent writing that file.
type Refresher struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	key atomic.Pointer[string]
}

// NewRefresher loads the key at path once and returns a Refresher serving
// it. fallback is used while the file is empty.
func NewRefresher(path string, interval time.Duration, fallback string, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Refresher{path: path, interval: interval, logger: logger}
	r.key.Store(&fallback)
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// APIKey implements KeySource.
func (r *Refresher) APIKey() string {
	return *r.key.Load()
}

// Refresh reads the key file now.
func (r *Refresher) Refresh() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return nil
	}
	if key != r.APIKey() {
		r.key.Store(&key)
		r.logger.Info("llm credentials refreshed", "path", r.path)
	}
	return nil
}

// Run refreshes until ctx is done. Failures keep the previous key.
func (r *Refresher) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(); err != nil {
				r.logger.Warn("llm credential refresh failed", "error", err)
			}
		}
	}
}
