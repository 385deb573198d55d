package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ahrav/go-veriai/internal/application"
	"github.com/ahrav/go-veriai/internal/ports"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries state shared by every subcommand.
type app struct {
	cfgFile string
	verbose bool

	cfg    *application.AppConfig
	logger *zap.Logger

	// newClient builds the LLM client; tests replace it.
	newClient func(a *app, metrics ports.MetricsCollector) (ports.LLMClient, error)
}

func newApp() *app {
	return &app{newClient: buildLLMClient}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "veriai",
		Short: "VeriAI - fact-check text against live web search",
		Long: `VeriAI extracts the factual claims in a piece of text, checks each one
with a search-grounded language model and reports which claims are
verified, uncertain or likely hallucinated.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (environment: VERIAI_*)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newServeCmd(a), newVerifyCmd(a), newVersionCmd())
	return root
}

// init loads configuration and builds the logger.
func (a *app) init() error {
	cfg, err := application.LoadConfig(viper.New(), a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger != nil {
		return nil
	}
	logger, err := buildLogger(cfg.Log, a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func buildLogger(cfg application.LogConfig, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "veriai %s\n", version)
		},
	}
}
