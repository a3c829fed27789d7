package main

import (
	"fmt"
	"io"
	"os"

	"leaffliction/internal/config"
	"leaffliction/internal/logger"
	"leaffliction/internal/rembg"

	"github.com/spf13/cobra"
)

const AppName = "leaffliction"

var rootCmd = &cobra.Command{
	Use:           AppName,
	Short:         "Derive segmentation, shape and color artifacts from leaf photographs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("model", "", "Background removal model (.onnx); \"none\" disables it")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the global flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		if model == "none" {
			cfg.Remover.Kind = "none"
		} else {
			cfg.Remover.Kind = "onnx"
			cfg.Remover.ModelPath = model
		}
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) logger.Logger {
	level := logger.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.Format == "json" {
		return logger.NewJSONLogger(level)
	}
	return logger.NewConsoleLogger(level)
}

// closeRemover releases model sessions held by r.
func closeRemover(r rembg.BackgroundRemover, log logger.Logger) {
	if c, ok := r.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warning("CLI", "remover cleanup failed", map[string]interface{}{"error": err.Error()})
		}
	}
}
