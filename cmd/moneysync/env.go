package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/jask/moneysync/internal/cache"
	"github.com/jask/moneysync/internal/config"
	"github.com/jask/moneysync/internal/database"
	"github.com/jask/moneysync/internal/logging"
	"github.com/jask/moneysync/internal/remote"
	"github.com/jask/moneysync/internal/secrets"
	"github.com/jask/moneysync/internal/service"
	ledgersync "github.com/jask/moneysync/internal/sync"
)

// Env vars read for secrets when the credential store has none.
const (
	envPassword    = "MONEYSYNC_PASSWORD"
	envGitHubToken = "MONEYSYNC_GITHUB_TOKEN"
	envS3Secret    = "MONEYSYNC_S3_SECRET_KEY"
)

// env is everything a command needs, opened from config.
type env struct {
	cfg      config.Config
	log      *zap.Logger
	creds    *secrets.CredentialStore
	password string
	blobs    cache.BlobStore
	store    *database.Handle
	ledger   *service.Ledger
	engine   *ledgersync.Engine
	closers  []func() error
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})

	creds, err := secrets.DefaultCredentialStore()
	if err != nil {
		log.Warn("credential store unavailable", zap.Error(err))
		creds = nil
	}
	e := &env{cfg: cfg, log: log, creds: creds}
	e.password = creds.Lookup(secrets.SyncPassword, envPassword)

	e.blobs, err = e.openCache()
	if err != nil {
		return nil, err
	}
	cachePassword := ""
	if cfg.Cache.Encrypt {
		if e.password == "" {
			e.close(ctx)
			return nil, fmt.Errorf("cache.encrypt is set but no password is configured (set %s)", envPassword)
		}
		cachePassword = e.password
	}

	e.store, err = database.Load(ctx, database.Options{
		Path:         cfg.Database.Path,
		Cache:        e.blobs,
		Password:     cachePassword,
		PersistDelay: cfg.Cache.Debounce,
		Logger:       log.Named("store"),
	})
	if err != nil {
		e.close(ctx)
		return nil, err
	}
	e.closers = append(e.closers, func() error { return e.store.Close(context.Background()) })
	e.ledger = service.New(e.store, log.Named("service"))

	rem, err := e.openRemote(ctx)
	if err != nil {
		e.close(ctx)
		return nil, err
	}
	e.engine, err = ledgersync.New(ctx, e.store, ledgersync.Options{
		Remote:    rem,
		Path:      cfg.Sync.Path,
		Password:  e.password,
		Cache:     e.blobs,
		PushDelay: cfg.Sync.Debounce,
		Logger:    log.Named("sync"),
	})
	if err != nil {
		e.close(ctx)
		return nil, err
	}
	return e, nil
}

func (e *env) openCache() (cache.BlobStore, error) {
	switch strings.ToLower(e.cfg.Cache.Backend) {
	case "", "dir":
		return cache.NewDir(e.cfg.Cache.Dir)
	case "redis":
		r, err := cache.NewRedis(cache.RedisConfig{
			Addr:     e.cfg.Cache.Redis.Addr,
			Password: e.cfg.Cache.Redis.Password,
			DB:       e.cfg.Cache.Redis.DB,
			Prefix:   e.cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, r.Close)
		return r, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", e.cfg.Cache.Backend)
	}
}

// openRemote returns nil when sync is off.
func (e *env) openRemote(ctx context.Context) (remote.ObjectStore, error) {
	sc := e.cfg.Sync
	log := e.log.Named("remote")
	switch strings.ToLower(sc.Backend) {
	case "", "none":
		return nil, nil
	case "dir":
		return remote.NewDir(sc.Dir)
	case "s3":
		secret := sc.S3.SecretKey
		if secret == "" {
			secret = e.creds.Lookup(secrets.S3SecretKey, envS3Secret)
		}
		return remote.NewS3(ctx, remote.S3Config{
			Bucket:       sc.S3.Bucket,
			Region:       sc.S3.Region,
			Endpoint:     sc.S3.Endpoint,
			AccessKey:    sc.S3.AccessKey,
			SecretKey:    secret,
			UsePathStyle: sc.S3.UsePathStyle,
		}, remote.WithLogger(log))
	case "github":
		token := sc.GitHub.Token
		if token == "" {
			token = e.creds.Lookup(secrets.GitHubToken, envGitHubToken)
		}
		return remote.NewGitHub(remote.GitHubConfig{
			Repo:    sc.GitHub.Repo,
			APIBase: sc.GitHub.APIBase,
			Token:   token,
		}, remote.WithGitHubLogger(log))
	default:
		return nil, fmt.Errorf("unknown sync backend %q", sc.Backend)
	}
}

// close pushes pending changes when sync is on, then releases everything.
func (e *env) close(ctx context.Context) error {
	// an interrupt cancels ctx; the final push and persist still run
	ctx = context.WithoutCancel(ctx)
	var errs []error
	if e.engine != nil {
		if err := e.engine.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("push: %w", err))
		}
		e.engine.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// run opens the environment, calls fn and closes it, mapping errors to exit
// statuses.
func run(ctx context.Context, fn func(ctx context.Context, e *env) error) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	runErr := fn(ctx, e)
	closeErr := e.close(ctx)
	_ = e.log.Sync()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		if errors.Is(runErr, service.ErrValidation) || errors.Is(runErr, errUsage) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", closeErr)
	}
	return subcommands.ExitSuccess
}

var errUsage = errors.New("usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
