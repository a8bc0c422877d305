package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"artisanat/config"
	"artisanat/logging"
	"artisanat/storage"
	"artisanat/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every subcommand needs once the environment is loaded.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	var envFile string
	a := &app{}

	root := &cobra.Command{
		Use:           "artisanat",
		Short:         "African craft storefront API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cfg.DevMode)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before the environment (default .env)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newCreateSuperuserCmd(a),
	)
	return root
}

// openStore returns the postgres store when DATABASE_URL is set and the
// in-memory store otherwise. close releases the connection.
func (a *app) openStore(ctx context.Context) (store storage.Store, closeFn func(), err error) {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("DATABASE_URL is empty, using the in-memory store")
		return storage.NewMemory(), func() {}, nil
	}
	db, err := postgres.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return postgres.New(db), func() { _ = db.Close() }, nil
}
