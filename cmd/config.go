package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/sheetsight/sheetsight/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Sheetsight configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("api_key: %s\n", mask(cfg.APIKey))
		fmt.Printf("default_model: %s\n", cfg.DefaultModel)
		if cfg.DefaultProvider != "" {
			fmt.Printf("default_provider: %s\n", cfg.DefaultProvider)
		}
		fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
		fmt.Printf("temperature: %.3f\n", cfg.Temperature)
		fmt.Printf("top_p: %.3f\n", cfg.TopP)
		fmt.Printf("reports_dir: %s\n", cfg.ReportsDir)
		fmt.Printf("parallel_sheets: %d\n", cfg.ParallelSheets)
		fmt.Printf("ollama_host: %s\n", cfg.OllamaHost)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "api_key":
			cfg.APIKey = val
		case "default_model":
			cfg.DefaultModel = val
		case "default_provider":
			switch val {
			case "openrouter", "OpenRouter", "OPENROUTER":
				cfg.DefaultProvider = "openrouter"
			case "ollama", "local", "Ollama", "LOCAL":
				cfg.DefaultProvider = "ollama"
			default:
				return fmt.Errorf("invalid default_provider: %s (use openrouter or ollama)", val)
			}
		case "max_tokens":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid max_tokens: %s", val)
			}
			cfg.MaxTokens = n
		case "temperature":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f < 0 || f > 2 {
				return fmt.Errorf("invalid temperature: %s", val)
			}
			cfg.Temperature = f
		case "top_p":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || f <= 0 || f > 1 {
				return fmt.Errorf("invalid top_p: %s", val)
			}
			cfg.TopP = f
		case "reports_dir":
			cfg.ReportsDir = val
		case "parallel_sheets":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid parallel_sheets: %s", val)
			}
			cfg.ParallelSheets = n
		case "ollama_host":
			cfg.OllamaHost = val
		default:
			return fmt.Errorf("unknown config key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", key)
		return nil
	},
}

func mask(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
