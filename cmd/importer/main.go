package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/open-sun/software/internal/config"
	"github.com/open-sun/software/internal/fish"
	"github.com/open-sun/software/internal/logging"
	"github.com/open-sun/software/internal/store"
	"github.com/open-sun/software/internal/water"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Manage the fishery Postgres schema and bulk data",
	Long: `Reset the relational schema and bulk-load monitoring CSV files.

Available subcommands:
  reset - Drop and recreate all tables
  water - Load water quality CSV files from a directory tree
  fish  - Load the fish dataset CSV`,
	SilenceUsage: true,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate all tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(pg *store.PostgresStore, cfg *config.Config, logger *zap.Logger) error {
			if err := pg.Migrate(cmd.Context(), true); err != nil {
				return err
			}
			logger.Info("schema reset")
			return nil
		})
	},
}

var waterCmd = &cobra.Command{
	Use:   "water",
	Short: "Load water quality CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		return withStore(cmd.Context(), func(pg *store.PostgresStore, cfg *config.Config, logger *zap.Logger) error {
			if dir == "" {
				dir = water.NewFileStore(cfg.DataDir).NameRoot()
			}
			n, err := water.LoadDir(cmd.Context(), dir, pg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d water quality rows from %s\n", n, dir)
			return nil
		})
	},
}

var fishCmd = &cobra.Command{
	Use:   "fish",
	Short: "Load the fish dataset CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		return withStore(cmd.Context(), func(pg *store.PostgresStore, cfg *config.Config, logger *zap.Logger) error {
			if file == "" {
				file = filepath.Join(cfg.DataDir, "Fish.csv")
			}
			n, err := fish.LoadFile(cmd.Context(), file, pg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d fish rows from %s\n", n, file)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "env-style config file")
	waterCmd.Flags().String("dir", "", "root of the per-site CSV tree (default DATA_DIR/WaterQualitybyDate/water_quality_by_name)")
	fishCmd.Flags().String("file", "", "fish dataset CSV (default DATA_DIR/Fish.csv)")
	rootCmd.AddCommand(resetCmd, waterCmd, fishCmd)
}

// withStore opens the configured pool, ensures the schema exists and
// hands the store to fn.
func withStore(ctx context.Context, fn func(*store.PostgresStore, *config.Config, *zap.Logger) error) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer pool.Close()

	pg := store.NewPostgresStore(pool)
	if err := pg.Migrate(ctx, false); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return fn(pg, cfg, logger)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
