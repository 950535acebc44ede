// Package app wires the gateway into a running process.
//
// The App struct owns the full lifecycle: New builds the gateway from config
// and starts the optional subsystems (telemetry, config hot-reload, admin
// endpoint), Run routes events until the context ends, and Shutdown tears
// everything down in reverse order.
//
// The signaling engine is not built here; the embedding program supplies an
// [gateway.EngineFactory] through [gateway.Deps].
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hfpag/internal/config"
	"github.com/MrWong99/hfpag/internal/gateway"
	"github.com/MrWong99/hfpag/internal/health"
	"github.com/MrWong99/hfpag/internal/observe"
	"github.com/MrWong99/hfpag/pkg/bearer/bluez"
)

// adminShutdownTimeout bounds draining of in-flight admin requests.
const adminShutdownTimeout = 5 * time.Second

// App owns every subsystem of a running gateway process.
type App struct {
	cfg *config.Config
	log *slog.Logger
	gw  *gateway.Gateway

	// Set by options.
	configPath    string
	watchInterval time.Duration
	telemetry     *observe.ProviderConfig
	incoming      <-chan bluez.Incoming
	checkers      []health.Checker

	watcher *config.Watcher
	admin   *http.Server
	adminLn net.Listener

	// closers run in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithConfigPath watches path and applies hot-reloadable changes to the
// gateway. interval <= 0 keeps the watcher's default polling interval.
func WithConfigPath(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// WithTelemetry installs the OpenTelemetry SDK providers with cfg before the
// gateway is built.
func WithTelemetry(cfg observe.ProviderConfig) Option {
	return func(a *App) { a.telemetry = &cfg }
}

// WithIncoming routes service level connections opened by HF devices, usually
// [bluez.Profile.Incoming], to the gateway.
func WithIncoming(ch <-chan bluez.Incoming) Option {
	return func(a *App) { a.incoming = ch }
}

// WithChecker adds a readiness check to the admin endpoint.
func WithChecker(c health.Checker) Option {
	return func(a *App) { a.checkers = append(a.checkers, c) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New builds the gateway for cfg. Audio implementations are looked up in reg;
// deps supplies the bearer profile and engine factory.
//
// On error every subsystem started so far is shut down again.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, deps gateway.Deps, opts ...Option) (_ *App, err error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	a := &App{cfg: cfg, log: deps.Logger}
	for _, o := range opts {
		o(a)
	}
	defer func() {
		if err != nil {
			_ = a.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if a.telemetry != nil {
		shutdown, err := observe.InitProvider(ctx, *a.telemetry)
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.closers = append(a.closers, func() error {
			return shutdown(context.WithoutCancel(ctx))
		})
	}

	// ── 2. Gateway ───────────────────────────────────────────────────────
	if a.gw, err = gateway.NewFromConfig(cfg, reg, deps); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, func() error {
		a.gw.Shutdown()
		return nil
	})

	// ── 3. Config hot-reload ─────────────────────────────────────────────
	if a.configPath != "" {
		a.watcher, err = config.NewWatcher(a.configPath, a.gw.ApplyConfig,
			config.WithLogger(a.log),
			config.WithInterval(a.watchInterval),
		)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, func() error {
			a.watcher.Stop()
			return nil
		})
	}

	// ── 4. Admin endpoint ────────────────────────────────────────────────
	if addr := cfg.Server.AdminAddr; addr != "" {
		var lc net.ListenConfig
		if a.adminLn, err = lc.Listen(ctx, "tcp", addr); err != nil {
			return nil, fmt.Errorf("app: listen admin %q: %w", addr, err)
		}
		a.admin = &http.Server{
			Handler:           a.gw.AdminHandler(a.checkers...),
			ReadHeaderTimeout: adminShutdownTimeout,
		}
		a.closers = append(a.closers, func() error {
			err := a.adminLn.Close()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		})
	}

	a.log.Info("app: initialised",
		"admin_addr", a.AdminAddr(),
		"config_path", a.configPath,
		"telemetry", a.telemetry != nil,
	)
	return a, nil
}

// Gateway returns the gateway, for attaching call managers, reporting search
// results and the battery level.
func (a *App) Gateway() *gateway.Gateway { return a.gw }

// AdminAddr returns the address the admin endpoint listens on, or "" when it
// is disabled.
func (a *App) AdminAddr() string {
	if a.adminLn == nil {
		return ""
	}
	return a.adminLn.Addr().String()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves until ctx is cancelled or a subsystem fails. The gateway's
// sessions are shut down before Run returns; call Shutdown afterwards to
// release the remaining subsystems.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.gw.Run(gctx, a.incoming)
	})

	if a.admin != nil {
		g.Go(func() error {
			if err := a.admin.Serve(a.adminLn); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), adminShutdownTimeout)
			defer cancel()
			return a.admin.Shutdown(sctx)
		})
	}

	a.log.Info("app: running")
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. If ctx expires
// before all closers finish, the remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("app: shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("app: shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("app: closer error", "index", i, "err", err)
			}
		}

		a.log.Info("app: shutdown complete")
	})
	return shutdownErr
}
