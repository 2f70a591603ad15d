// lookup resolves barcodes from the command line through the same components
// as the API server. Without flags it only enriches the barcode. --submit
// also stamps and appends it to the ledger, and --recent prints the latest
// ledger entries.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"hardwarelens-api/internal/app"
	"hardwarelens-api/internal/config"
	"hardwarelens-api/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		submit     bool
		recent     bool
		ledgerType string
		verbose    bool
	)

	flagSet := pflag.NewFlagSet("lookup", pflag.ContinueOnError)
	flagSet.BoolVar(&submit, "submit", false, "append the enriched record to the ledger")
	flagSet.BoolVar(&recent, "recent", false, "print the most recent ledger entries")
	flagSet.StringVar(&ledgerType, "ledger", "", "override LEDGER_TYPE (sheets, sqlite, mysql, postgres)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if !recent && len(args) != 1 {
		printHelp(flagSet)
		return errors.New("expected exactly one barcode")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ledgerType != "" {
		cfg.Ledger.Type = ledgerType
	}

	logger := zap.NewNop()
	if verbose {
		cfg.App.Debug = true
		if logger, err = app.NewLogger(cfg.App); err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if len(args) == 1 {
		barcode := args[0]
		if submit {
			rec, err := a.Submissions.Submit(ctx, barcode)
			if err != nil {
				return err
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		} else {
			req := service.SubmitRequest{Barcode: barcode}
			if err := req.Validate(); err != nil {
				return err
			}
			rec, err := a.Enricher.Resolve(ctx, barcode)
			if err != nil {
				return err
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	}

	if recent {
		records, err := a.Submissions.ListRecent(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(records)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: lookup [--submit] [--recent] [BARCODE]\n\n")
	fmt.Fprintf(os.Stderr, "Configuration is read from the environment and .env, as for the API server.\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flagSet.PrintDefaults()
}
