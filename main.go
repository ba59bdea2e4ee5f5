package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"boohill-ingest/config"
	"boohill-ingest/parser"
	"boohill-ingest/services"
	"boohill-ingest/storage"
	"boohill-ingest/utils"
)

var version = "0.3.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "boohill",
		Short: "Listing text ingestion for the Boohill house corpus",
		Long: `Boohill turns listing text copied from a real-estate portal into houses
and their items, drops duplicates within the paste, and classifies every
house against the stored corpus before importing it.

Input is read from a file, from stdin ("-"), or fetched from portal pages.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(housesCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command shares. store and shipper are only set when
// the command asked for them.
type app struct {
	cfg     *config.Config
	logger  *utils.Logger
	store   *storage.SQLStore
	shipper *utils.TraceShipper
}

func newApp(ctx context.Context, withStore bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: utils.NewLeveledLogger(os.Stderr, cfg.LogLevel)}

	if cfg.FluentHost != "" {
		shipper, err := utils.NewTraceShipper(cfg.FluentHost, cfg.FluentPort, cfg.FluentTag)
		if err != nil {
			a.logger.Warn("[main] Trace shipping disabled: %v", err)
		} else {
			a.shipper = shipper
		}
	}

	if withStore {
		if a.store, err = openStore(ctx, cfg, a.logger); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.SQLStore, error) {
	switch cfg.StoreDriver {
	case "postgres":
		logger.Info("[main] Using PostgreSQL at %s:%s/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
		return storage.OpenPostgres(ctx, cfg.DSN(), logger)
	default:
		logger.Info("[main] Using SQLite at %s", cfg.SQLitePath)
		return storage.OpenSQLite(cfg.SQLitePath)
	}
}

// importer builds an Importer over the app's store, if any.
func (a *app) importer() *services.Importer {
	p := parser.New(parser.Options{
		DefaultArea:     a.cfg.Parser.DefaultArea,
		HeaderWindow:    a.cfg.Parser.HeaderWindow,
		OfficeLookahead: a.cfg.Parser.OfficeLookahead,
	})

	var sink services.TraceSink
	if a.shipper != nil {
		sink = a.shipper
	}
	if a.store == nil {
		return services.NewImporter(p, nil, sink, a.logger)
	}
	return services.NewImporter(p, a.store, sink, a.logger)
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("[main] Closing store: %v", err)
		}
	}
	if err := a.shipper.Close(); err != nil {
		a.logger.Warn("[main] Closing trace shipper: %v", err)
	}
}
