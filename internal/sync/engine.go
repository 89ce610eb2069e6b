// Package sync reconciles the local ledger with one encrypted snapshot in a
// remote object store. Writes mark the ledger dirty and schedule a debounced
// push; every push names the version it replaces, so a device that missed a
// remote change gets a conflict instead of overwriting it.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/cache"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/database/repository"
	"github.com/jask/moneysync/internal/debounce"
	"github.com/jask/moneysync/internal/remote"
	"github.com/jask/moneysync/internal/secrets"
)

// DefaultPushDelay is the quiet period after the last write before a push.
const DefaultPushDelay = 2 * time.Second

var (
	// ErrNotConfigured means no remote or no password was given.
	ErrNotConfigured = errors.New("sync not configured")
	// ErrNotInitialized means no version token is known yet; InitialSync
	// must run before the first push.
	ErrNotInitialized = errors.New("sync not initialized")
)

// State is the engine's coarse status.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateError   State = "error"
)

// PullResult says whether a pull replaced the local ledger.
type PullResult int

const (
	NotPulled PullResult = iota
	Pulled
)

func (r PullResult) String() string {
	if r == Pulled {
		return "pulled"
	}
	return "not pulled"
}

// Options configures an Engine. A nil Remote or empty Password leaves the
// engine unconfigured: scheduled pushes are dropped and explicit calls fail
// with ErrNotConfigured.
type Options struct {
	Remote    remote.ObjectStore
	Path      string
	Password  string
	Cache     cache.BlobStore // keeps the version token between sessions
	PushDelay time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

// Status is a point-in-time view of the engine.
type Status struct {
	State     State
	Dirty     bool
	Version   string
	LastSync  time.Time
	LastError error
}

// Engine owns the sync state for one ledger handle.
type Engine struct {
	store    *database.Handle
	remote   remote.ObjectStore
	path     string
	password string
	cache    cache.BlobStore
	log      *zap.Logger
	now      func() time.Time
	push     *debounce.Task

	op sync.Mutex // serializes push and pull

	mu       sync.Mutex
	state    State
	dirty    bool
	version  string
	lastSync time.Time
	lastErr  error
}

// New builds an engine for h and hooks it to every committed write. The
// version token is restored from the cache when present.
func New(ctx context.Context, h *database.Handle, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	path := opts.Path
	if path == "" {
		path = "money-tracker.enc"
	}
	e := &Engine{
		store:    h,
		remote:   opts.Remote,
		path:     path,
		password: opts.Password,
		cache:    opts.Cache,
		log:      log,
		now:      now,
		state:    StateIdle,
	}
	delay := opts.PushDelay
	if delay <= 0 {
		delay = DefaultPushDelay
	}
	e.push = debounce.New(delay, e.scheduledPush, func(err error) {
		e.log.Warn("scheduled push failed", zap.Error(err))
	})

	if e.cache != nil {
		token, err := e.cache.Get(ctx, cache.KeySyncVersion)
		switch {
		case err == nil:
			e.version = string(token)
		case errors.Is(err, cache.ErrNotFound):
		default:
			return nil, fmt.Errorf("read sync version: %w", err)
		}
	}
	if err := h.Read(ctx, func(q repository.Querier) error {
		v, ok, err := repository.NewSettingsRepo(q).Get(ctx, repository.SettingLastSyncTime)
		if err != nil || !ok {
			return err
		}
		if t, perr := time.Parse(time.RFC3339, v); perr == nil {
			e.lastSync = t
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read last sync time: %w", err)
	}

	h.OnWrite(e.markDirty)
	return e, nil
}

// Configured reports whether the engine can reach a remote.
func (e *Engine) Configured() bool {
	return e.remote != nil && e.password != ""
}

// Status returns the current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:     e.state,
		Dirty:     e.dirty,
		Version:   e.version,
		LastSync:  e.lastSync,
		LastError: e.lastErr,
	}
}

func (e *Engine) markDirty() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
	e.SchedulePush()
}

// SchedulePush starts or restarts the push delay. It does nothing when the
// engine is not configured.
func (e *Engine) SchedulePush() {
	if !e.Configured() {
		return
	}
	e.push.Trigger()
}

// Flush runs a scheduled push now and waits for it.
func (e *Engine) Flush(ctx context.Context) error {
	return e.push.Flush(ctx)
}

// Close drops any scheduled push. It does not push.
func (e *Engine) Close() {
	e.push.Stop()
}

func (e *Engine) scheduledPush(ctx context.Context) error {
	e.mu.Lock()
	dirty := e.dirty
	e.mu.Unlock()
	if !dirty {
		return nil
	}
	return e.Push(ctx)
}

// Push uploads the whole ledger, replacing the last version this engine saw.
// A conflict leaves the engine in StateError and is not retried; the caller
// has to pull first.
func (e *Engine) Push(ctx context.Context) error {
	if !e.Configured() {
		return ErrNotConfigured
	}
	e.op.Lock()
	defer e.op.Unlock()

	e.mu.Lock()
	expected := e.version
	e.mu.Unlock()
	if expected == "" {
		return e.fail(fmt.Errorf("push: %w", ErrNotInitialized))
	}
	return e.pushLocked(ctx, expected)
}

func (e *Engine) pushLocked(ctx context.Context, expected string) error {
	e.setState(StateSyncing)
	gen := e.store.Generation()
	data, err := e.store.Export(ctx)
	if err != nil {
		return e.fail(fmt.Errorf("push: %w", err))
	}
	sealed, err := secrets.Encrypt(data, e.password)
	if err != nil {
		return e.fail(fmt.Errorf("push: %w", err))
	}
	version, err := e.remote.Put(ctx, e.path, sealed, expected)
	if err != nil {
		return e.fail(fmt.Errorf("push: %w", err))
	}
	e.log.Info("pushed ledger", zap.String("path", e.path), zap.Int("bytes", len(sealed)))
	e.push.Cancel()
	e.succeed(ctx, version, gen)
	return nil
}

// Pull fetches the remote snapshot and replaces the local ledger with it,
// unless the remote version is the one this engine already has.
func (e *Engine) Pull(ctx context.Context) (PullResult, error) {
	if !e.Configured() {
		return NotPulled, ErrNotConfigured
	}
	e.op.Lock()
	defer e.op.Unlock()

	e.setState(StateSyncing)
	obj, err := e.remote.Get(ctx, e.path)
	if err != nil {
		return NotPulled, e.fail(fmt.Errorf("pull: %w", err))
	}
	return e.apply(ctx, obj)
}

// InitialSync adopts the remote snapshot when one exists, otherwise creates
// it from the local ledger. It is the only call that creates the remote
// object.
func (e *Engine) InitialSync(ctx context.Context) (PullResult, error) {
	if !e.Configured() {
		return NotPulled, ErrNotConfigured
	}
	e.op.Lock()
	defer e.op.Unlock()

	e.setState(StateSyncing)
	obj, err := e.remote.Get(ctx, e.path)
	switch {
	case err == nil:
		return e.apply(ctx, obj)
	case errors.Is(err, remote.ErrNotFound):
		e.log.Info("no remote ledger yet, creating it", zap.String("path", e.path))
		return NotPulled, e.pushLocked(ctx, "")
	default:
		return NotPulled, e.fail(fmt.Errorf("initial sync: %w", err))
	}
}

// Resume is called when the app regains focus. Pending local changes are
// pushed; otherwise the remote is pulled.
func (e *Engine) Resume(ctx context.Context) (PullResult, error) {
	if !e.Configured() {
		return NotPulled, nil
	}
	e.mu.Lock()
	dirty := e.dirty
	e.mu.Unlock()
	if dirty {
		e.push.Cancel()
		return NotPulled, e.Push(ctx)
	}
	return e.Pull(ctx)
}

func (e *Engine) apply(ctx context.Context, obj remote.Object) (PullResult, error) {
	e.mu.Lock()
	current := e.version
	e.mu.Unlock()
	if obj.Version != "" && obj.Version == current {
		e.setState(StateSynced)
		return NotPulled, nil
	}

	data, err := secrets.Decrypt(obj.Data, e.password)
	if err != nil {
		return NotPulled, e.fail(fmt.Errorf("pull: %w", err))
	}
	if err := e.store.Replace(ctx, data); err != nil {
		return NotPulled, e.fail(fmt.Errorf("pull: %w", err))
	}
	e.push.Cancel()
	e.log.Info("pulled ledger", zap.String("path", e.path), zap.Int("bytes", len(obj.Data)))
	e.succeed(ctx, obj.Version, e.store.Generation())
	return Pulled, nil
}

// succeed records version as the remote state. dirty is only cleared when no
// write landed after gen was read.
func (e *Engine) succeed(ctx context.Context, version string, gen uint64) {
	now := e.now().UTC()

	e.mu.Lock()
	e.version = version
	if e.store.Generation() == gen {
		e.dirty = false
	}
	e.state = StateSynced
	e.lastErr = nil
	e.lastSync = now
	e.mu.Unlock()

	if err := e.store.SetMeta(ctx, repository.SettingLastSyncTime, now.Format(time.RFC3339)); err != nil {
		e.log.Warn("save last sync time failed", zap.Error(err))
	}
	e.saveVersion(ctx, version)
}

// saveVersion persists the token only after the snapshot it describes is in
// the cache, so a restart never pairs a new token with an older snapshot.
func (e *Engine) saveVersion(ctx context.Context, version string) {
	if e.cache == nil {
		return
	}
	if err := e.store.Flush(ctx); err != nil {
		e.log.Warn("persist snapshot before sync version failed, keeping previous version",
			zap.Error(err))
		return
	}
	if err := e.cache.Put(ctx, cache.KeySyncVersion, []byte(version)); err != nil {
		e.log.Warn("save sync version failed", zap.Error(err))
	}
}

func (e *Engine) fail(err error) error {
	e.mu.Lock()
	e.state = StateError
	e.lastErr = err
	e.mu.Unlock()
	e.log.Warn("sync failed", zap.Error(err))
	return err
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}
