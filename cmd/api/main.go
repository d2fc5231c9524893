package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/MrJamesThe3rd/tally/internal/account"
	accountStore "github.com/MrJamesThe3rd/tally/internal/account/store"
	"github.com/MrJamesThe3rd/tally/internal/config"
	"github.com/MrJamesThe3rd/tally/internal/database"
	"github.com/MrJamesThe3rd/tally/internal/export"
	tallyHttp "github.com/MrJamesThe3rd/tally/internal/http"
	accountHandler "github.com/MrJamesThe3rd/tally/internal/http/account"
	"github.com/MrJamesThe3rd/tally/internal/http/auth"
	exportHandler "github.com/MrJamesThe3rd/tally/internal/http/export"
	importHandler "github.com/MrJamesThe3rd/tally/internal/http/importcsv"
	matchingHandler "github.com/MrJamesThe3rd/tally/internal/http/matching"
	txHandler "github.com/MrJamesThe3rd/tally/internal/http/transaction"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/tally/internal/ledger/store"
	"github.com/MrJamesThe3rd/tally/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/tally/internal/matching/store"
	"github.com/MrJamesThe3rd/tally/internal/outbox"
	"github.com/MrJamesThe3rd/tally/internal/outbox/kafka"
	outboxStore "github.com/MrJamesThe3rd/tally/internal/outbox/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := database.Migrate(cfg.ConnectionString()); err != nil {
			return err
		}
	}

	var (
		accountService  = account.NewService(accountStore.New(db))
		ledgerService   = ledger.NewService(ledgerStore.New(db))
		matchingService = matching.NewService(matchingStore.New(db))
		importService   = importer.NewService()
		exportService   = export.NewService(ledgerService, accountService)
	)

	router := tallyHttp.New(
		auth.New(auth.Config{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		}),
		cfg.CORS.AllowedOrigins,
		tallyHttp.Handlers{
			Accounts:     accountHandler.NewHandler(accountService, ledgerService),
			Transactions: txHandler.NewHandler(ledgerService),
			Import:       importHandler.NewHandler(importService, ledgerService, matchingService),
			Matching:     matchingHandler.NewHandler(matchingService),
			Export:       exportHandler.NewHandler(exportService),
		},
	)

	var wg sync.WaitGroup

	dispatcher, closePublisher := newDispatcher(cfg, outboxStore.New(db))
	defer closePublisher()

	wg.Go(func() { dispatcher.Run(ctx) })

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()

		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	wg.Wait()

	return nil
}

// newDispatcher publishes to Kafka when brokers are configured and to the
// log otherwise.
func newDispatcher(cfg *config.Config, repo outbox.Repository) (*outbox.Dispatcher, func()) {
	dcfg := outbox.DispatcherConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	}

	if len(cfg.Outbox.KafkaBrokers) == 0 {
		slog.Warn("no kafka brokers configured, outbox events go to the log")
		return outbox.NewDispatcher(repo, outbox.NewLogPublisher(slog.Default()), dcfg), func() {}
	}

	pub := kafka.NewPublisher(cfg.Outbox.KafkaBrokers, cfg.Outbox.KafkaTopic)

	return outbox.NewDispatcher(repo, pub, dcfg), func() {
		if err := pub.Close(); err != nil {
			slog.Error("failed to close kafka writer", "error", err)
		}
	}
}
