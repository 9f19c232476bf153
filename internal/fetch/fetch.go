// Package fetch materializes the dataset collection on local storage.
//
// A fetched collection is published by renaming a fully extracted staging
// directory onto the dataset root, so readers never observe a partial tree
// and concurrent fetchers cannot corrupt each other's result.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"fedigraph/internal/errs"
)

// CompleteMarker is written at the root of every collection this package
// publishes.
const CompleteMarker = ".fedigraph-complete"

// Fetcher ensures the full collection exists under root. It must be a no-op
// when the collection is already present.
type Fetcher interface {
	EnsureLocal(ctx context.Context, root string) error
}

// IsPresent reports whether root holds a collection: either one published
// by this package or a non-empty directory placed there by hand.
func IsPresent(root string) bool {
	if _, err := os.Stat(filepath.Join(root, CompleteMarker)); err == nil {
		return true
	}
	entries, err := os.ReadDir(root)
	return err == nil && len(entries) > 0
}

// Remove deletes the collection under root so the next EnsureLocal fetches
// it again. A root that is not a directory is left alone.
func Remove(root string) error {
	info, err := os.Lstat(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errs.Fetch("remove", err)
	}
	if !info.IsDir() {
		return errs.Fetch("remove", fmt.Errorf("root %s is not a directory", root))
	}
	if err := os.RemoveAll(root); err != nil {
		return errs.Fetch("remove", err)
	}
	return nil
}

// Local never downloads anything; it only checks that the collection is
// already present.
type Local struct{}

func (Local) EnsureLocal(_ context.Context, root string) error {
	if IsPresent(root) {
		return nil
	}
	return errs.Fetch("local", errors.New("dataset not present at "+root+" and downloads are disabled"))
}

// Once runs the wrapped fetcher at most once per root. Failures are not
// remembered, so a later call retries.
type Once struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu   sync.Mutex
	done map[string]bool
}

func NewOnce(f Fetcher, logger *slog.Logger) *Once {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Once{fetcher: f, logger: logger, done: make(map[string]bool)}
}

func (o *Once) EnsureLocal(ctx context.Context, root string) error {
	key := filepath.Clean(root)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done[key] {
		o.logger.Debug("dataset already ensured in this process", "root", key)
		return nil
	}
	if err := o.fetcher.EnsureLocal(ctx, key); err != nil {
		return err
	}
	o.done[key] = true
	return nil
}
