// Package app is the composition root: it turns a Config into a ready
// AuthService with its storage, key material and collaborators.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/credcore/internal/audit"
	"github.com/dmitrijs2005/credcore/internal/clock"
	"github.com/dmitrijs2005/credcore/internal/common"
	"github.com/dmitrijs2005/credcore/internal/config"
	"github.com/dmitrijs2005/credcore/internal/cryptox"
	"github.com/dmitrijs2005/credcore/internal/dbx"
	"github.com/dmitrijs2005/credcore/internal/filex"
	"github.com/dmitrijs2005/credcore/internal/keymgr"
	"github.com/dmitrijs2005/credcore/internal/logging"
	"github.com/dmitrijs2005/credcore/internal/mailer"
	"github.com/dmitrijs2005/credcore/internal/metrics"
	"github.com/dmitrijs2005/credcore/internal/services"
	"github.com/dmitrijs2005/credcore/internal/session"
	"github.com/dmitrijs2005/credcore/internal/store"
	"github.com/dmitrijs2005/credcore/internal/twofactor"
	"github.com/prometheus/client_golang/prometheus"
)

// Options carries what Config does not: where logs go, which clock and
// mailer to use and where metrics are registered. Zero values pick the
// production defaults.
type Options struct {
	LogWriter  io.Writer
	Clock      clock.Clock
	Mailer     mailer.Mailer
	Registerer prometheus.Registerer
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *store.Store
	sessions *session.Manager
	auth     services.AuthService
}

// New opens the store, loads or creates the field key and wires the auth
// service. A missing or unusable key is fatal and wraps
// common.ErrCryptoUnavailable.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.LogWriter == nil {
		opts.LogWriter = io.Discard
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	logger, err := logging.New(cfg.LogFormat, opts.LogWriter, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	dialect, err := dbx.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if dialect == dbx.SQLite {
		if path := filex.SQLitePath(cfg.DatabaseDSN); path != "" {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, fmt.Errorf("db init error: %w", err)
			}
		}
	}

	st, err := store.Open(ctx, dialect, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	a, err := wire(ctx, cfg, opts, logger, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func wire(ctx context.Context, cfg *config.Config, opts Options, logger logging.Logger, st *store.Store) (*App, error) {
	repos := st.Repos()

	key, err := keymgr.New(repos.Metadata).GetOrCreateKey(ctx)
	if err != nil {
		return nil, err
	}
	crypto, err := cryptox.NewService(key, cryptox.KDFParams{
		Time:     cfg.KDFTime,
		MemoryKB: cfg.KDFMemoryKB,
		Threads:  cfg.KDFThreads,
	})
	if err != nil {
		return nil, err
	}

	m, err := metrics.New(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	signingKey := []byte(cfg.SessionSigningKey)
	if len(signingKey) == 0 {
		logger.Warn(ctx, "no session signing key configured, tokens will not survive a restart")
		signingKey = common.GenerateRandByteArray(32)
	}

	if opts.Mailer == nil {
		opts.Mailer = mailer.NewLogMailer(logger.With("component", "mailer"))
	}

	sessions := session.NewManager(opts.Clock, repos.Sessions, cfg.SessionTTL)
	auth := services.NewAuthService(services.Deps{
		Store:     st,
		Crypto:    crypto,
		Clock:     opts.Clock,
		Sessions:  sessions,
		Tokens:    session.NewTokenIssuer(signingKey, opts.Clock),
		TwoFactor: twofactor.New(crypto, opts.Clock, repos.TwoFactor, cfg.TOTPIssuer),
		Audit:     audit.New(opts.Clock, repos.AuditLog),
		Mailer:    opts.Mailer,
		Metrics:   m,
		Logger:    logger,
	}, cfg)

	if n, err := sessions.PurgeExpired(ctx); err != nil {
		logger.Warn(ctx, "purging expired sessions failed", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "expired sessions purged", "count", n)
	}

	logger.Debug(ctx, "app ready", "driver", string(st.Dialect()))

	return &App{config: cfg, logger: logger, store: st, sessions: sessions, auth: auth}, nil
}

func (a *App) Auth() services.AuthService { return a.auth }

func (a *App) Logger() logging.Logger { return a.logger }

// Close flushes the logger and releases the database.
func (a *App) Close() error {
	if z, ok := a.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
	return a.store.Close()
}
