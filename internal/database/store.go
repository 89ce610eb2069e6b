package database

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/cache"
	"github.com/jask/moneysync/internal/database/repository"
	"github.com/jask/moneysync/internal/debounce"
	"github.com/jask/moneysync/internal/secrets"
)

// ErrCorruptSnapshot is returned when snapshot bytes are not a usable sqlite database.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

var sqliteHeader = []byte("SQLite format 3\x00")

// DefaultPersistDelay is the quiet period before a write is persisted to the cache.
const DefaultPersistDelay = 500 * time.Millisecond

// Options configures Load.
type Options struct {
	Path         string          // working sqlite file
	Cache        cache.BlobStore // optional; holds the snapshot between sessions
	Password     string          // when set, cached snapshots are encrypted
	PersistDelay time.Duration
	Logger       *zap.Logger
}

// Handle owns the single working database. Reads share a read lock; writes,
// snapshot replacement and close take the write lock.
type Handle struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string

	cache    cache.BlobStore
	password string
	persist  *debounce.Task
	log      *zap.Logger

	hookMu sync.Mutex
	gen    uint64
	hooks  []func()
	closed bool
}

// Load restores the cached snapshot when one exists, otherwise keeps or
// creates the working file, then migrates it to the latest schema. A
// migration failure aborts the load and no handle is returned.
func Load(ctx context.Context, opts Options) (*Handle, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("database path required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	restored := false
	if opts.Cache != nil {
		data, err := opts.Cache.Get(ctx, cache.KeySnapshot)
		switch {
		case err == nil:
			if opts.Password != "" && !IsSnapshot(data) {
				if data, err = secrets.Decrypt(data, opts.Password); err != nil {
					return nil, fmt.Errorf("open cached snapshot: %w", err)
				}
			}
			if !IsSnapshot(data) {
				return nil, fmt.Errorf("cached snapshot: %w", ErrCorruptSnapshot)
			}
			if err := writeFile(opts.Path, data); err != nil {
				return nil, err
			}
			restored = true
			log.Debug("restored snapshot from cache", zap.Int("bytes", len(data)))
		case errors.Is(err, cache.ErrNotFound):
		default:
			return nil, fmt.Errorf("read cached snapshot: %w", err)
		}
	}

	if err := RunMigrations(opts.Path); err != nil {
		return nil, err
	}
	db, err := Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	h := &Handle{
		db:       db,
		path:     opts.Path,
		cache:    opts.Cache,
		password: opts.Password,
		log:      log,
	}
	delay := opts.PersistDelay
	if delay <= 0 {
		delay = DefaultPersistDelay
	}
	h.persist = debounce.New(delay, h.persistNow, func(err error) {
		h.log.Warn("persist snapshot failed", zap.Error(err))
	})

	seeded, err := SeedDefaults(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}
	if seeded || !restored {
		h.schedulePersist()
	}
	return h, nil
}

// Path returns the working file location.
func (h *Handle) Path() string { return h.path }

// Read runs fn under the read lock.
func (h *Handle) Read(ctx context.Context, fn func(q repository.Querier) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return fmt.Errorf("database closed")
	}
	return fn(h.db)
}

// Write runs fn in one transaction under the write lock. On commit the write
// generation advances, a persist is scheduled and write hooks run.
func (h *Handle) Write(ctx context.Context, fn func(tx repository.Querier) error) error {
	if err := h.tx(ctx, fn); err != nil {
		return err
	}
	h.Touch()
	return nil
}

// SetMeta writes a settings row without counting as a user change: it is
// persisted to the cache but does not mark the ledger dirty.
func (h *Handle) SetMeta(ctx context.Context, key, value string) error {
	err := h.tx(ctx, func(tx repository.Querier) error {
		return repository.NewSettingsRepo(tx).Set(ctx, key, value)
	})
	if err != nil {
		return err
	}
	h.schedulePersist()
	return nil
}

func (h *Handle) tx(ctx context.Context, fn func(tx repository.Querier) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return fmt.Errorf("database closed")
	}
	return WithTx(ctx, h.db, func(tx *sql.Tx) error { return fn(tx) })
}

// Touch records a change made outside Write, such as an imported snapshot.
func (h *Handle) Touch() {
	h.hookMu.Lock()
	h.gen++
	hooks := append([]func(){}, h.hooks...)
	h.hookMu.Unlock()

	h.schedulePersist()
	for _, fn := range hooks {
		fn()
	}
}

// Generation increases with every committed change.
func (h *Handle) Generation() uint64 {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	return h.gen
}

// OnWrite registers fn to run after every committed change.
func (h *Handle) OnWrite(fn func()) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Export returns a consistent image of the whole database.
func (h *Handle) Export(ctx context.Context) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.db == nil {
		return nil, fmt.Errorf("database closed")
	}
	dir, err := os.MkdirTemp(filepath.Dir(h.path), ".export-*")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "snapshot.db")
	if _, err := h.db.ExecContext(ctx, `VACUUM INTO ?`, out); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return os.ReadFile(out)
}

// Replace swaps the working database for data. The bytes are staged next to
// the working file, migrated and integrity checked first; any failure leaves
// the current database untouched. Replace does not run write hooks.
func (h *Handle) Replace(ctx context.Context, data []byte) error {
	if !IsSnapshot(data) {
		return ErrCorruptSnapshot
	}
	staged := h.path + ".incoming"
	cleanup := func() {
		for _, p := range []string{staged, staged + "-journal", staged + "-wal", staged + "-shm"} {
			_ = os.Remove(p)
		}
	}
	cleanup()
	if err := writeFile(staged, data); err != nil {
		return err
	}
	if err := checkIntegrity(ctx, staged); err != nil {
		cleanup()
		return err
	}
	if err := RunMigrations(staged); err != nil {
		cleanup()
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		cleanup()
		return fmt.Errorf("database closed")
	}
	if err := h.db.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close current database: %w", err)
	}
	h.db = nil
	if err := os.Rename(staged, h.path); err != nil {
		cleanup()
		db, openErr := Open(h.path)
		if openErr == nil {
			h.db = db
		}
		return fmt.Errorf("swap database: %w", err)
	}
	for _, p := range []string{h.path + "-journal", h.path + "-wal", h.path + "-shm"} {
		_ = os.Remove(p)
	}
	db, err := Open(h.path)
	if err != nil {
		return fmt.Errorf("reopen database: %w", err)
	}
	h.db = db
	h.log.Info("database replaced", zap.Int("bytes", len(data)))
	h.schedulePersist()
	return nil
}

// Flush persists any pending change to the cache now.
func (h *Handle) Flush(ctx context.Context) error {
	return h.persist.Flush(ctx)
}

// Close flushes pending persistence and closes the database.
func (h *Handle) Close(ctx context.Context) error {
	flushErr := h.Flush(ctx)
	h.persist.Stop()

	h.hookMu.Lock()
	h.closed = true
	h.hookMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.db == nil {
		return flushErr
	}
	err := h.db.Close()
	h.db = nil
	return errors.Join(flushErr, err)
}

func (h *Handle) schedulePersist() {
	if h.cache == nil {
		return
	}
	h.hookMu.Lock()
	closed := h.closed
	h.hookMu.Unlock()
	if !closed {
		h.persist.Trigger()
	}
}

func (h *Handle) persistNow(ctx context.Context) error {
	if h.cache == nil {
		return nil
	}
	data, err := h.Export(ctx)
	if err != nil {
		return err
	}
	if h.password != "" {
		if data, err = secrets.Encrypt(data, h.password); err != nil {
			return fmt.Errorf("encrypt snapshot: %w", err)
		}
	}
	if err := h.cache.Put(ctx, cache.KeySnapshot, data); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	h.log.Debug("snapshot persisted", zap.Int("bytes", len(data)))
	return nil
}

// IsSnapshot reports whether data starts with the sqlite file header.
func IsSnapshot(data []byte) bool {
	return len(data) >= 100 && bytes.HasPrefix(data, sqliteHeader)
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	defer db.Close()
	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrCorruptSnapshot, result)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	for _, p := range []string{path + "-journal", path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
	return os.Rename(tmp, path)
}
