package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"crateslsp/internal/config"
	"crateslsp/internal/diagnose"
	"crateslsp/internal/registry"
	"crateslsp/internal/resolver"
)

// loadConfig merges the optional config file with any flags the user
// set explicitly. Flags win.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("endpoint") {
		cfg.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("token") {
		cfg.Token, _ = flags.GetString("token")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("fetch-timeout") {
		timeout, _ := flags.GetDuration("fetch-timeout")
		cfg.FetchTimeout = config.Duration(timeout)
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if cfg.Endpoint == "" {
		return cfg, fmt.Errorf("registry endpoint must not be empty")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = config.DefaultConcurrency
	}
	return cfg, nil
}

// newLogger builds a stderr logger. Stdout stays reserved for the
// JSON-RPC stream.
func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// newSynthesizer wires the registry client, resolver and synthesizer
// from a loaded config.
func newSynthesizer(cfg config.Config, logger *zap.Logger) *diagnose.Synthesizer {
	client := registry.NewClient(cfg.Endpoint, cfg.Token, time.Duration(cfg.FetchTimeout))
	res := resolver.New(client, cfg.Concurrency, logger)
	return diagnose.New(res, logger)
}
