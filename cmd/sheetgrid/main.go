package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gnemet/sheetgrid"
	"github.com/gnemet/sheetgrid/source"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sheetgrid",
		Short: "Serve a spreadsheet as a sortable, filterable table",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newServeCmd(), newValidateCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := sheetgrid.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if cfg.Server.Port == "" {
				cfg.Server.Port = "8080"
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *sheetgrid.Config) error {
	src, err := source.New(cfg.Source, cfg.Fields(), &http.Client{})
	if err != nil {
		return err
	}
	if c, ok := src.(interface{ Close() error }); ok {
		defer c.Close()
	}

	handler, err := sheetgrid.NewHandler(cfg, src)
	if err != nil {
		return err
	}
	defer handler.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", "http://localhost:"+cfg.Server.Port, "source", cfg.Source.Kind())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config...]",
		Short: "Check config files against the schema and required settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{cfgFile}
			}
			out := cmd.OutOrStdout()
			allValid := true
			for _, path := range args {
				cfg, err := sheetgrid.LoadConfig(path)
				if err == nil {
					err = cfg.Validate()
				}
				if err == nil {
					fmt.Fprintf(out, "✅ %s is valid.\n", path)
					continue
				}
				allValid = false
				fmt.Fprintf(out, "❌ %s is invalid!\n", path)
				var serr *sheetgrid.SchemaError
				if errors.As(err, &serr) {
					for _, p := range serr.Problems {
						fmt.Fprintf(out, "   - %s\n", p)
					}
				} else {
					fmt.Fprintf(out, "   - %s\n", err)
				}
			}
			if !allValid {
				return errors.New("invalid configuration")
			}
			return nil
		},
	}
}
