package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billbatista/acasinha-splits/api"
	"github.com/billbatista/acasinha-splits/config"
	"github.com/billbatista/acasinha-splits/database"
	"github.com/billbatista/acasinha-splits/eventlogger"
	"github.com/billbatista/acasinha-splits/ledger"
	"github.com/billbatista/acasinha-splits/session"
	"github.com/billbatista/acasinha-splits/token"
	"github.com/billbatista/acasinha-splits/user"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const sessionPurgeInterval = time.Hour

type serveOptions struct {
	memory  bool
	migrate bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts.cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.memory, "memory", false, "keep everything in memory instead of PostgreSQL")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply pending migrations on startup")

	return cmd
}

type stores struct {
	db       *sql.DB
	ledger   ledger.Repository
	users    user.Repository
	sessions session.Repository
	events   eventlogger.EventLogger
}

func openStores(ctx context.Context, cfg *config.Config, opts *serveOptions) (*stores, error) {
	if opts.memory {
		slog.Warn("running with in-memory storage, nothing will survive a restart")
		return &stores{
			ledger:   ledger.NewMemoryRepository(),
			users:    user.NewMemoryRepository(),
			sessions: session.NewMemoryRepository(cfg.SessionTTL),
			events:   eventlogger.NewMemoryEventLogger(),
		}, nil
	}

	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if opts.migrate {
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &stores{
		db:       db,
		ledger:   ledger.NewRepository(db),
		users:    user.NewRepository(db),
		sessions: session.NewRepository(db, cfg.SessionTTL),
		events:   eventlogger.NewSqlEventLogger(db),
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config, opts *serveOptions) error {
	logger := slog.Default()

	st, err := openStores(ctx, cfg, opts)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	worker := eventlogger.NewWorker(st.events, cfg.AuditBuffer)
	worker.Start()
	defer func() {
		worker.Shutdown()
		if dropped := worker.Dropped(); dropped > 0 {
			logger.Warn("audit events dropped", "count", dropped)
		}
	}()

	service := ledger.NewService(st.ledger,
		ledger.WithDirectory(st.users),
		ledger.WithAuditor(worker),
		ledger.WithLogger(logger),
	)

	deps := api.Deps{
		Ledger:        service,
		Users:         st.users,
		Sessions:      st.sessions,
		Tokens:        issuer,
		Audit:         worker,
		Logger:        logger,
		CORSOrigins:   cfg.CORSOrigins,
		SecureCookies: cfg.SecureCookies,
	}
	if st.db != nil {
		deps.DB = st.db
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "memory", opts.memory)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		purgeSessions(gctx, st.sessions, logger)
		return nil
	})

	return g.Wait()
}

func purgeSessions(ctx context.Context, sessions session.Repository, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				logger.Error("failed to purge sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
