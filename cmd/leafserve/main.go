package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"leaffliction/internal/config"
	"leaffliction/internal/logger"
	"leaffliction/internal/rembg"
	"leaffliction/internal/shutdown"
	"leaffliction/internal/transport"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "leafserve",
	Short:        "Serve the leaf transformation pipeline over HTTP",
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.Flags().String("config", "", "YAML configuration file")
	rootCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	rootCmd.Flags().String("model", "", "Background removal model (.onnx); \"none\" disables it")
	rootCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if model, _ := cmd.Flags().GetString("model"); model == "none" {
		cfg.Remover.Kind = "none"
	} else if model != "" {
		cfg.Remover.Kind = "onnx"
		cfg.Remover.ModelPath = model
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.NewJSONLogger(logger.ParseLevel(cfg.Logging.Level))

	pc, err := cfg.Pipeline()
	if err != nil {
		return err
	}
	remover := cfg.NewRemover()
	pc.Remover = rembg.Synchronized(remover)
	// Request graphs never write debug files.
	pc.Debug = false

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: transport.NewHandler(transport.Options{Pipeline: pc, Logger: log}),
	}

	manager := shutdown.NewManager(log, cfg.Server.ShutdownTimeout)
	if c, ok := remover.(io.Closer); ok {
		manager.Register("remover", shutdown.Closer(c.Close))
	}
	manager.Register("http", shutdown.ComponentFunc(server.Shutdown))
	manager.Listen()

	log.Info("Server", "listening", map[string]interface{}{
		"addr":    cfg.Server.Addr,
		"remover": cfg.Remover.Kind,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		manager.Shutdown()
		return err
	case <-manager.Done():
		<-manager.Finished()
	}

	log.Info("Server", "server exited", nil)
	return nil
}
