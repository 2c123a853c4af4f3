package localgames

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Watcher collects uninstall entries from registry hives incrementally.
//
// Each subkey is parsed once per session. A hive whose subkey count has not
// grown since the last refresh is not listed again. Parsed entries wait in
// a pending set until a finder takes them.
type Watcher struct {
	hives  []Hive
	logger *log.Logger

	mu      sync.Mutex
	counts  map[string]int
	seen    map[string]map[string]bool
	pending map[UninstallKey]struct{}
}

// NewWatcher creates a Watcher over hives.
func NewWatcher(hives []Hive, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		hives:   hives,
		logger:  logger,
		counts:  make(map[string]int),
		seen:    make(map[string]map[string]bool),
		pending: make(map[UninstallKey]struct{}),
	}
}

// Refresh reads subkeys added since the last call.
func (w *Watcher) Refresh(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range w.hives {
		if err := w.refreshHive(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) refreshHive(ctx context.Context, h Hive) error {
	name := h.Name()
	count, err := h.SubKeyCount()
	if err != nil {
		w.logger.Debug("skipping hive", "hive", name, "err", err)
		return nil
	}
	if count <= w.counts[name] {
		return nil
	}
	subkeys, err := h.SubKeyNames()
	if err != nil {
		w.logger.Warn("listing uninstall keys failed", "hive", name, "err", err)
		return nil
	}
	seen := w.seen[name]
	if seen == nil {
		seen = make(map[string]bool)
		w.seen[name] = seen
	}
	added, failed := 0, 0
	for _, sk := range subkeys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen[sk] {
			continue
		}
		if ignored(sk) {
			seen[sk] = true
			continue
		}
		uk, ok, err := readUninstallKey(h, sk)
		if err != nil {
			w.logger.Debug("reading uninstall key failed", "hive", name, "key", sk, "err", err)
			failed++
			continue
		}
		seen[sk] = true
		if !ok {
			continue
		}
		w.pending[uk] = struct{}{}
		added++
	}
	// Unread keys are retried on the next refresh.
	if failed == 0 {
		w.counts[name] = count
	}
	w.logger.Debug("uninstall keys refreshed", "hive", name, "count", count, "added", added)
	return nil
}

// Len returns the number of pending entries.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Keys returns the pending entries sorted by key name without removing them.
func (w *Watcher) Keys() []UninstallKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sortedLocked()
}

// take removes and returns all pending entries sorted by key name.
func (w *Watcher) take() []UninstallKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := w.sortedLocked()
	clear(w.pending)
	return keys
}

// restore puts entries back into the pending set.
func (w *Watcher) restore(keys []UninstallKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, uk := range keys {
		w.pending[uk] = struct{}{}
	}
}

func (w *Watcher) sortedLocked() []UninstallKey {
	keys := make([]UninstallKey, 0, len(w.pending))
	for uk := range w.pending {
		keys = append(keys, uk)
	}
	slices.SortFunc(keys, func(a, b UninstallKey) int {
		if c := strings.Compare(a.KeyName, b.KeyName); c != 0 {
			return c
		}
		return strings.Compare(a.UninstallString, b.UninstallString)
	})
	return keys
}
