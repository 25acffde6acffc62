package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/LJTian/NewsLens/internal/app"
	"github.com/LJTian/NewsLens/internal/collector"
	"github.com/LJTian/NewsLens/internal/config"
	"github.com/LJTian/NewsLens/internal/logger"
	"github.com/LJTian/NewsLens/internal/pipeline"
)

var (
	cfgFile     string
	noPersist   bool
	printConfig bool
	jsonOutput  bool
	logLevel    string
)

// collect runs one scrape and exits; useful for manual runs and cron jobs outside the API.
var rootCmd = &cobra.Command{
	Use:   "collect [source...]",
	Short: "Scrape, enrich and store news articles once",
	Long: `collect runs the scraping pipeline a single time.

Without arguments every enabled source is scraped. Pass source ids
(bbc, guardian, npr, unnews) to limit the run.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: $NEWSLENS_CONFIG)")
	rootCmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not write to Postgres")
	rootCmd.Flags().BoolVar(&printConfig, "print-config", false, "print the effective config as YAML and exit")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "write the aggregated result as JSON to stdout")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if printConfig {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg.Redacted())
	}

	ids := make([]collector.SourceID, 0, len(args))
	for _, arg := range args {
		id, err := collector.ParseSourceID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log, err := logger.New(level, cfg.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = pipeline.WithTrigger(ctx, "cli")

	a, err := app.New(ctx, cfg, log, app.Options{NoPersist: noPersist})
	if err != nil {
		return err
	}
	defer a.Close()

	var agg pipeline.Aggregate
	if len(ids) == 0 {
		agg = a.Service.ScrapeAll(ctx)
	} else if agg, err = a.Service.ScrapeSources(ctx, ids); err != nil {
		return err
	}

	log.Info("collect done", zap.Int("articles", len(agg.Articles)), zap.Int("errors", len(agg.Errors)))
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(agg); err != nil {
			return err
		}
	}
	if len(agg.Errors) > 0 && len(agg.Articles) == 0 {
		return fmt.Errorf("all %d source(s) failed", len(agg.Errors))
	}
	return nil
}
