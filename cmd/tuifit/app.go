package main

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/tuifit/internal/cache"
	"github.com/verte-zerg/tuifit/internal/config"
	"github.com/verte-zerg/tuifit/internal/fit"
	"github.com/verte-zerg/tuifit/internal/ingest"
	"github.com/verte-zerg/tuifit/internal/store"
	"github.com/verte-zerg/tuifit/internal/viewer"
)

const redisDialTimeout = 3 * time.Second

// app holds the collaborators shared by the subcommands.
type app struct {
	store  *store.Store
	cache  *cache.Redis
	loader *ingest.Loader
	fitter *fit.Fitter
}

func newApp(ctx context.Context, cfg config.FileConfig) (*app, error) {
	fitter, err := newFitter(cfg.Fit)
	if err != nil {
		return nil, err
	}
	a := &app{fitter: fitter}

	timeout, err := config.ParseDuration(cfg.Fetch.Timeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch timeout: %w", err)
	}
	fetcher := ingest.NewFetcher(timeout, nil)
	fetcher.Warn = logErrf
	if cfg.Fetch.RedisAddr != nil && *cfg.Fetch.RedisAddr != "" {
		if rc, err := newRedisCache(ctx, cfg.Fetch); err != nil {
			logErrf("redis cache disabled: %v\n", err)
		} else {
			a.cache = rc
			fetcher.Cache = rc
		}
	}
	a.loader = &ingest.Loader{Fetcher: fetcher}

	if cfg.History.Disabled == nil || !*cfg.History.Disabled {
		st, err := openStore(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = st
	}
	return a, nil
}

// historyOrNil returns the fit history, or nil when recording is disabled.
func (a *app) historyOrNil() viewer.History {
	if a.store == nil {
		return nil
	}
	return a.store
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logErrf("failed to close db: %v\n", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logErrf("failed to close redis: %v\n", err)
		}
	}
}

func newFitter(cfg config.FitConfig) (*fit.Fitter, error) {
	name := config.DefaultOptimizer
	if cfg.Optimizer != nil {
		name = *cfg.Optimizer
	}
	maxIter := 0
	if cfg.MaxIter != nil {
		if *cfg.MaxIter < 0 {
			return nil, fmt.Errorf("fit.max-iter must be >= 0")
		}
		maxIter = *cfg.MaxIter
	}
	switch name {
	case "lm":
		lm := fit.LevenbergMarquardt{MaxEvaluations: maxIter}
		if cfg.FTol != nil {
			lm.FTol = *cfg.FTol
		}
		if cfg.XTol != nil {
			lm.XTol = *cfg.XTol
		}
		if cfg.GTol != nil {
			lm.GTol = *cfg.GTol
		}
		return fit.NewFitter(lm), nil
	case "bfgs":
		b := fit.BFGS{MaxIterations: maxIter}
		if cfg.GTol != nil {
			b.GradientThreshold = *cfg.GTol
		}
		return fit.NewFitter(b), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

func newRedisCache(ctx context.Context, cfg config.FetchConfig) (*cache.Redis, error) {
	ttl, err := config.ParseDuration(cfg.CacheTTL, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid cache ttl: %w", err)
	}
	if ttl == 0 {
		ttl, _ = time.ParseDuration(config.DefaultCacheTTL)
	}
	opts := cache.Options{
		Addr:        *cfg.RedisAddr,
		TTL:         ttl,
		DialTimeout: redisDialTimeout,
	}
	if cfg.RedisPassword != nil {
		opts.Password = *cfg.RedisPassword
	}
	if cfg.RedisDB != nil {
		opts.DB = *cfg.RedisDB
	}
	return cache.NewRedis(ctx, opts)
}

func openStore(cfg config.FileConfig) (*store.Store, error) {
	driver := config.DefaultHistoryDrv
	if cfg.History.Driver != nil {
		driver = *cfg.History.Driver
	}
	dsn := ""
	if cfg.History.DSN != nil {
		dsn = *cfg.History.DSN
	}
	if dsn == "" {
		if driver != store.DriverSQLite {
			return nil, fmt.Errorf("history.dsn is required for the %s driver", driver)
		}
		dsn = config.DefaultDBPath()
	}
	st, err := store.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}
