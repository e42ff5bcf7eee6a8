package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"

	"printpos/internal/app"
	"printpos/internal/config"
	"printpos/internal/httpapi"
	"printpos/internal/service"
)

// Supported subcommands:
// - migrate:       apply schema migrations (and optionally seed)
// - hash-passcode: print a bcrypt hash for auth.passcodeHash
// - outstanding:   list customer credit balances
// - export-sales:  write the sales report for a date range as CSV

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errors.New("missing subcommand")
	}

	switch args[0] {
	case "migrate":
		cmd := flag.NewFlagSet("migrate", flag.ContinueOnError)
		configPath := cmd.String("config", "", "Path to a printpos.yaml file")
		seed := cmd.Bool("seed", false, "Seed the default catalogue and shop profile")
		if err := cmd.Parse(args[1:]); err != nil {
			return err
		}
		return runMigrate(ctx, *configPath, *seed, out)
	case "hash-passcode":
		cmd := flag.NewFlagSet("hash-passcode", flag.ContinueOnError)
		passcode := cmd.String("passcode", "", "Passcode to hash")
		if err := cmd.Parse(args[1:]); err != nil {
			return err
		}
		hash, err := httpapi.HashPasscode(*passcode)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hash)
		return nil
	case "outstanding":
		cmd := flag.NewFlagSet("outstanding", flag.ContinueOnError)
		configPath := cmd.String("config", "", "Path to a printpos.yaml file")
		all := cmd.Bool("all", false, "Include customers with nothing outstanding")
		term := cmd.String("q", "", "Filter by customer name or contact")
		if err := cmd.Parse(args[1:]); err != nil {
			return err
		}
		return runOutstanding(ctx, *configPath, *all, *term, out)
	case "export-sales":
		cmd := flag.NewFlagSet("export-sales", flag.ContinueOnError)
		configPath := cmd.String("config", "", "Path to a printpos.yaml file")
		from := cmd.String("from", "", "First day, YYYY-MM-DD (default 30 days before -to)")
		to := cmd.String("to", "", "Last day, YYYY-MM-DD (default today)")
		if err := cmd.Parse(args[1:]); err != nil {
			return err
		}
		return runExportSales(ctx, *configPath, *from, *to, out)
	default:
		printUsage(out)
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage: cli <migrate|hash-passcode|outstanding|export-sales> [flags]")
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.Load(path)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openService(ctx context.Context, configPath string) (*service.Service, func() error, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := quietLogger()
	ledger, err := app.OpenLedger(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return service.New(ledger, logger), ledger.Close, nil
}

func runMigrate(ctx context.Context, configPath string, seed bool, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverMemory {
		return errors.New("memory driver has no schema to migrate")
	}

	cfg.Database.Migrate = true
	cfg.Database.Seed = seed
	ledger, err := app.OpenLedger(ctx, cfg.Database, quietLogger())
	if err != nil {
		return err
	}
	defer ledger.Close()

	fmt.Fprintf(out, "%s schema is up to date\n", cfg.Database.Driver)
	return nil
}

func runOutstanding(ctx context.Context, configPath string, all bool, term string, out io.Writer) error {
	svc, closeFn, err := openService(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	balances, err := svc.ListOutstanding(ctx, all)
	if err != nil {
		return pkgerrors.Wrap(err, "list outstanding")
	}
	balances = service.SearchBalances(balances, term)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CUSTOMER\tCONTACT\tSALES\tBILLED\tPAID\tOUTSTANDING")
	for _, b := range balances {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			b.CustomerName,
			b.CustomerContact,
			b.SaleCount,
			service.FormatAmount(b.BilledCents),
			service.FormatAmount(b.PaidCents),
			service.FormatAmount(b.OutstandingCents),
		)
	}
	return tw.Flush()
}

func runExportSales(ctx context.Context, configPath string, from string, to string, out io.Writer) error {
	svc, closeFn, err := openService(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := svc.SalesReport(ctx, from, to)
	if err != nil {
		return pkgerrors.Wrap(err, "build sales report")
	}
	return service.WriteSalesCSV(out, report)
}
