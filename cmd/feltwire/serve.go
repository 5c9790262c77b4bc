package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feltwire/feltwire/cmd/feltwire/shared"
	"github.com/feltwire/feltwire/internal/history"
	"github.com/feltwire/feltwire/internal/ledger"
	"github.com/feltwire/feltwire/internal/server"
)

// ServeCmd runs the gateway, orchestrator, and in-memory ledger mirror.
type ServeCmd struct {
	Config   string `kong:"default='feltwire.hcl',help='Path to HCL configuration file'"`
	Addr     string `kong:"help='Override listen address from config'"`
	LogLevel string `kong:"help='Override log level from config'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return err
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := shared.SetupLogger(cfg.Server.LogLevel)

	addr := c.Addr
	if addr == "" {
		addr = cfg.GetServerAddress()
	}

	var fees *ledger.FeeCalculator
	if f := cfg.Fees; f != nil {
		fees = &ledger.FeeCalculator{
			CostUnits:        f.CostUnits,
			UnitPrice:        f.UnitPrice,
			MarkupBps:        f.MarkupBps,
			FloorFee:         f.FloorFee,
			SafetyMultiplier: f.SafetyMultiplier,
		}
	}

	runtime := cfg.Runtime()
	mirror := ledger.NewMemoryLedger(ledger.Options{
		Fees:          fees,
		RevealTimeout: runtime.RevealTimeout,
	})
	ledger.NewLocalSeedSource(mirror, logger)

	var store *history.Store
	if cfg.Server.HistoryPath != "" {
		store, err = history.Open(cfg.Server.HistoryPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	srv := server.NewServer(addr, logger)
	opts := []server.OrchestratorOption{}
	if store != nil {
		opts = append(opts, server.WithHistory(store))
	}
	orch := server.NewOrchestrator(mirror, srv, runtime, logger, opts...)
	srv.SetOrchestrator(orch)

	ctx := context.Background()
	for _, table := range cfg.Tables {
		tableID, err := mirror.CreateTable(ctx, table.SmallBlind, table.BigBlind)
		if err != nil {
			return err
		}
		if err := orch.AddTable(tableID); err != nil {
			return err
		}
		logger.Info("Table ready", "name", table.Name, "id", tableID,
			"smallBlind", table.SmallBlind, "bigBlind", table.BigBlind)
	}

	sigCtx := shared.SetupSignalHandler(logger)

	g, gCtx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")
		orch.Stop()
		stopDone := make(chan error, 1)
		go func() { stopDone <- srv.Stop() }()
		select {
		case err := <-stopDone:
			return err
		case <-time.After(5 * time.Second):
			return errors.New("shutdown timed out")
		}
	})

	return g.Wait()
}
