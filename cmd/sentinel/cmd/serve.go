package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sentinel-review/sentinel/internal/adapters/ledger"
	"github.com/sentinel-review/sentinel/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run archive over HTTP",
	Long: `Start the read-only status API over the run archive. Dashboards and
scripts can list runs, inspect one run's findings and verdict, and read
per-turn cost entries.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)

	store, err := ledger.Open(cfg.Ledger.Path, ledger.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	addr := cfg.API.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := api.NewServer(store,
		api.WithLogger(logger),
		api.WithAllowedOrigins(cfg.API.AllowedOrigins),
		api.WithRequestTimeout(cfg.API.RequestTimeout),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.ListenAndServe(ctx, addr)
}
