package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finflare/internal/backend"
	"finflare/internal/backend/memory"
	"finflare/internal/cache"
	"finflare/internal/config"
	"finflare/internal/core"
	"finflare/internal/events"
	"finflare/internal/export"
	apphttp "finflare/internal/http"
	"finflare/internal/log"
	"finflare/internal/middleware/ratelimit"
	"finflare/internal/ports"
	"finflare/internal/session"
	"finflare/internal/storage"
)

const (
	cookieTTL      = 30 * 24 * time.Hour
	cacheSweep     = time.Minute
	eventQueueSize = 256
)

// App is the assembled web application and everything it must release.
type App struct {
	Server *apphttp.Server

	caches  *cache.Manager
	closers []func(context.Context) error
	logger  *log.Logger
}

// Build wires the configured backend, token store, event publisher and
// report exporter into an HTTP server. On error everything opened so far
// is closed again.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (_ *App, err error) {
	app := &App{logger: logger}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	if res.Cleanup != nil {
		app.onClose(func(context.Context) error { return res.Cleanup() })
	}

	tokens, err := app.tokenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := app.publisher(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := reportExporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(res.Backend, tokens, session.ManagerConfig{
		TTL:         cfg.SessionTTL,
		MaxSessions: cfg.SessionCacheSize,
		InitTimeout: cfg.SessionInitTimeout,
	}, logger)
	sessions.OnEvent(func(ev session.Event) {
		_ = publisher.Publish(context.Background(), sessionEvent(ev))
	})

	var demoHint string
	if backendCfg.Type == backend.MemoryBackend {
		demoHint = fmt.Sprintf("Demo account: %s / %s", memory.DemoUsername, memory.DemoPassword)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Backend:     res.Backend,
		Sessions:    sessions,
		Categorizer: core.Categorizer{Delay: cfg.CategorizeDelay},
		Exporter:    exporter,
		Events:      publisher,
		Logger:      logger,
	}, apphttp.Options{
		SecureCookies: cfg.SecureCookies,
		CookieTTL:     cookieTTL,
		ListCacheTTL:  cfg.ListCacheTTL,
		ListCacheSize: cfg.SessionCacheSize,
		RateLimit:     ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute},
		DemoHint:      demoHint,
	})
	if err != nil {
		return nil, err
	}
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16
	app.Server = srv

	app.caches = cache.NewManager(logger)
	app.caches.Register(sessions.Cache())
	app.caches.Register(srv.ListCache())
	app.caches.StartCleanup(cacheSweep)
	return app, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// tokenStore picks where session tokens survive between requests.
func (a *App) tokenStore(ctx context.Context, cfg *config.Config) (session.TokenStoreFactory, error) {
	if cfg.TokenStore != "sqlite" {
		return session.NewMemoryTokens().For, nil
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	a.onClose(func(context.Context) error { return repo.Close() })

	if _, err := repo.Prune(ctx, cookieTTL); err != nil {
		a.logger.WarnContext(ctx, "Pruning stale tokens failed", log.FieldError, err.Error())
	}
	return func(sid string) session.TokenStore {
		return repo.TokenStore(sid, session.TokenKey)
	}, nil
}

// publisher returns the activity event sink. Without AMQP events are dropped.
func (a *App) publisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.EventsEnabled() {
		return events.Noop{}, nil
	}
	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	d := events.NewDispatcher(client, eventQueueSize, a.logger)
	a.onClose(func(context.Context) error {
		d.Close()
		return client.Close()
	})
	return d, nil
}

func reportExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.ReportExporter, error) {
	if !cfg.ExportEnabled() {
		return export.Unavailable{}, nil
	}
	exp, err := export.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleReportSheet, export.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize report export: %w", err)
	}
	return exp, nil
}

var sessionEventTypes = map[session.EventKind]events.Type{
	session.EventLogin:    events.SessionLogin,
	session.EventLogout:   events.SessionLogout,
	session.EventExpired:  events.SessionExpired,
	session.EventRestored: events.SessionRestored,
}

func sessionEvent(ev session.Event) events.Event {
	out := events.New(sessionEventTypes[ev.Kind], ev.SID, ev.Username)
	if !ev.At.IsZero() {
		out.Timestamp = ev.At.UTC()
	}
	return out
}

// Close stops the background sweeps and releases resources in reverse
// order of acquisition.
func (a *App) Close(ctx context.Context) error {
	if a.caches != nil {
		a.caches.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Shutdown stops accepting requests, then releases everything else.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.Server != nil {
		err = a.Server.Shutdown(ctx)
	}
	return errors.Join(err, a.Close(ctx))
}
