package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/api"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/config"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/infra/logging"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/infra/pgutils"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/infra/redisutil"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/services/ledger"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/internal/services/settlement"
	"github.com/ueservicesllc1-ops/sportbetreplicaclean-sub000/pkg/closer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON("settlement-api", cfg.LogLevel)

	c := closer.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		cerr := c.Close(shutdownCtx)
		if cerr != nil {
			retErr = errors.Join(retErr, cerr)
		}
	}()

	// --- Infra ---
	dbConns, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	c.Add(func(context.Context) error {
		slog.Info("Close db pool")
		return dbConns.Close()
	})

	rdb, err := redisutil.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	if rdb != nil {
		c.Add(func(context.Context) error {
			slog.Info("Close redis client")
			return rdb.Close()
		})
	}

	// --- Services ---
	ledgerSrv := ledger.New(dbConns)
	settlementSrv := settlement.New(ledgerSrv, rdb)

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, settlementSrv)

	// Register HTTP server graceful shutdown
	c.Add(func(sctx context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(sctx)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "redis_enabled", rdb != nil)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; the deferred closer drain will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
