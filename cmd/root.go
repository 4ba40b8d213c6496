package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetsight/sheetsight/internal/ai"
	cfgpkg "github.com/sheetsight/sheetsight/internal/config"
)

var (
	// Global flags (wired later to config/viper)
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "sheetsight",
	Short: "Sheetsight: turn a spreadsheet into per-sheet PDF insight reports",
	Long:  `Sheetsight profiles an uploaded CSV, TSV, or XLSX file, asks an AI model for the key insights and the charts that best show them, then renders those charts into one PDF report per sheet.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sheetsight/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// buildRuntime constructs the model runtime for the configured provider.
func buildRuntime() (ai.Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	if cfg.DefaultProvider == ai.ProviderOllama || cfg.DefaultProvider == ai.ProviderLocal {
		timeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
	}
	return ai.NewRuntime(cfg.DefaultProvider, ai.RuntimeOptions{
		APIKey:      cfg.APIKey,
		OllamaHost:  cfg.OllamaHost,
		HTTPTimeout: timeout,
		RetryMax:    cfg.RetryMaxAttempts,
		RetryBase:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		RetryCap:    time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
	})
}
