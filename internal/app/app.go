// Package app assembles the runtime collaborators shared by the binaries:
// logger, metrics backend, object store and catalog.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"lakehouse/internal/config"
	"lakehouse/internal/ingest"
	"lakehouse/internal/logger"
	"lakehouse/internal/metrics"
	"lakehouse/internal/metrics/datadog"
	"lakehouse/internal/objectstore"
	"lakehouse/internal/storage"
	"lakehouse/internal/tabular"
)

// Env is an opened set of collaborators. Close releases them in reverse
// order of opening.
type Env struct {
	Config  *config.Config
	Log     *logger.Logger
	Store   objectstore.Store
	Catalog storage.Catalog

	closers []func() error
}

// Open builds the logger, metrics backend, object store and catalog from cfg.
// The catalog schema is ensured up front so misconfiguration fails fast.
// Catalog backends must be registered by the caller (blank import of
// lakehouse/internal/storage/all).
func Open(ctx context.Context, cfg *config.Config) (*Env, error) {
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	env := &Env{Config: cfg, Log: log}
	env.closers = append(env.closers, func() error { log.Sync(); return nil })

	if err := env.setupMetrics(ctx); err != nil {
		log.Warn("metrics disabled", "err", err)
	}

	raw, err := objectstore.New(ctx, cfg.StoreConfig())
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("objectstore: %w", err)
	}
	if c, ok := raw.(io.Closer); ok {
		env.closers = append(env.closers, c.Close)
	}
	env.Store = objectstore.WithRetry(raw, cfg.RetryConfig(), log)

	cat, err := storage.New(ctx, cfg.CatalogConfig())
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}
	env.closers = append(env.closers, func() error { cat.Close(); return nil })
	env.Catalog = cat

	sctx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.Catalog.SchemaTimeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, cfg.Catalog.SchemaTimeout)
	}
	defer cancel()
	if err := cat.EnsureSchema(sctx); err != nil {
		env.Close()
		return nil, fmt.Errorf("ensure catalog schema: %w", err)
	}

	log.Info("lakehouse ready",
		"catalog", cfg.Catalog.Kind,
		"dsn", cfg.Catalog.DSN,
		"objectstore", cfg.ObjectStore.Kind,
		"container", env.Store.Container(),
	)
	return env, nil
}

func (e *Env) setupMetrics(ctx context.Context) error {
	m := e.Config.Metrics
	switch m.Backend {
	case "", "none":
		return nil
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    m.Job,
			Tags:       m.Tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return datadog.WrapInitErr(err)
		}
		metrics.SetBackend(b)
		e.closers = append(e.closers, b.Close)
		e.Log.Info("metrics enabled", "backend", m.Backend, "job", m.Job, "tags", m.Tags)
		return nil
	default:
		return fmt.Errorf("unknown metrics backend %q", m.Backend)
	}
}

// Engine returns an ingest engine configured from the ingest section.
func (e *Env) Engine() *ingest.Engine {
	eng := ingest.NewEngine(e.Store, e.Catalog, e.Log)
	eng.Owner = e.Config.Ingest.Owner
	eng.ParquetCopy = e.Config.Ingest.ParquetCopy
	eng.Reader = &tabular.Reader{MinConfidence: e.Config.Ingest.EncodingConfidence, Log: eng.Log}
	return eng
}

// Runner returns a worker pool around Engine.
func (e *Env) Runner() *ingest.Runner {
	return &ingest.Runner{Engine: e.Engine(), Workers: e.Config.Ingest.Workers, Log: e.Log}
}

// Close releases everything Open acquired.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
