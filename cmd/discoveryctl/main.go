package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ManiFed/invariant-sub001/internal/config"
	"github.com/ManiFed/invariant-sub001/internal/httpapi"
	"github.com/ManiFed/invariant-sub001/internal/logging"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/pkg/discovery"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:], stdout)
	case "serve":
		return runServe(ctx, args[1:], stdout)
	case "front":
		return runFront(ctx, args[1:], stdout)
	case "guidance":
		return runGuidance(ctx, args[1:], stdout)
	case "reset":
		return runReset(ctx, args[1:], stdout)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// commonFlags are shared by every command. Flags only override the loaded
// config when set explicitly.
type commonFlags struct {
	configPath string
	store      string
	dsn        string
	seed       int64
	logLevel   string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&c.store, "store", "", "store backend: memory|sqlite|postgres")
	fs.StringVar(&c.dsn, "dsn", "", "sqlite path or postgres connection string")
	fs.Int64Var(&c.seed, "seed", 0, "engine seed")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug|info|warn|error")
	return c
}

func (c *commonFlags) load(fs *flag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			cfg.Storage.Kind = c.store
		case "dsn":
			cfg.Storage.DSN = c.dsn
		case "seed":
			cfg.Engine.Seed = c.seed
		case "log-level":
			cfg.Logging.Level = c.logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openClient(ctx context.Context, cfg config.Config) (*discovery.Client, *slog.Logger, error) {
	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	client, err := discovery.New(discovery.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	restored, err := client.Init(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Info("engine ready",
		slog.String("store", cfg.Storage.Kind),
		slog.Bool("restored", restored),
		slog.Int("total_generations", client.State().TotalGenerations),
	)
	return client, logger, nil
}

func runRun(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := registerCommon(fs)
	ticks := fs.Int("ticks", 10, "number of ticks to run")
	jsonOut := fs.Bool("json", false, "print summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	client, _, err := openClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, *ticks)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	status := "completed"
	if summary.Cancelled {
		status = "interrupted"
	}
	fmt.Fprintf(stdout, "run %s: %s of %s ticks in %s\n",
		status, humanize.Comma(int64(summary.Ticks)), humanize.Comma(int64(*ticks)), summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(stdout, "candidates=%s archive=%s total_generations=%s\n",
		humanize.Comma(int64(summary.NewCandidates)), humanize.Comma(int64(summary.ArchiveSize)), humanize.Comma(int64(summary.TotalGenerations)))
	if summary.BestID != "" {
		fmt.Fprintf(stdout, "best=%s score=%s\n", summary.BestID, humanize.FormatFloat("#,###.####", summary.BestScore))
	}
	return nil
}

func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	common := registerCommon(fs)
	addr := fs.String("addr", "", "listen address (overrides config)")
	autostart := fs.Bool("autostart", false, "start the tick scheduler immediately")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	client, logger, err := openClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	api := httpapi.NewServer(ctx, client.Engine(), client.Scheduler(), client.TickInterval(), logger)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if *autostart {
		if err := client.Scheduler().Start(ctx, client.TickInterval()); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(stdout, "listening on %s\n", cfg.Server.Addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
	client.Scheduler().Stop()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runFront(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("front", flag.ContinueOnError)
	common := registerCommon(fs)
	metricsFlag := fs.String("metrics", "", "comma-separated objective metrics (default all)")
	limit := fs.Int("limit", 20, "max candidates to print")
	jsonOut := fs.Bool("json", false, "print candidates as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var metrics []model.MetricName
	if *metricsFlag != "" {
		for _, name := range strings.Split(*metricsFlag, ",") {
			m, err := model.ParseMetric(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			metrics = append(metrics, m)
		}
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	client, _, err := openClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	front := client.Front(metrics...)
	if *limit > 0 && len(front) > *limit {
		front = front[:*limit]
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(front)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFAMILY\tREGIME\tGEN\tSCORE\tFEES\tSLIPPAGE")
	for _, c := range front {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%.4f\t%.4f\n",
			c.ID, c.Family, c.Regime, c.Generation, c.Score, c.Metrics.TotalFees, c.Metrics.TotalSlippage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s non-dominated of %s archived\n",
		humanize.Comma(int64(len(front))), humanize.Comma(int64(len(client.State().Archive))))
	return nil
}

func runGuidance(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("guidance", flag.ContinueOnError)
	common := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	client, _, err := openClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	rec, ok := client.Guidance()
	if !ok {
		fmt.Fprintln(stdout, "no recommendation yet: not enough archived candidates")
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FAMILY\tWEIGHT\tCOUNT\tMEAN\tBEST")
	stats := make(map[string]int, len(rec.Stats))
	for i, s := range rec.Stats {
		stats[string(s.Family)] = i
	}
	for _, id := range rec.PrioritizedFamilies {
		s := rec.Stats[stats[string(id)]]
		fmt.Fprintf(tw, "%s\t%.3f\t%s\t%.4f\t%.4f\n",
			id, rec.FamilyWeights[id], humanize.Comma(int64(s.Count)), s.MeanScore, s.BestScore)
	}
	return tw.Flush()
}

func runReset(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	common := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	client, _, err := openClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "reset engine state")
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: discoveryctl <run|serve|front|guidance|reset> [flags]", msg)
}
