// Package cmd implements the qrydex command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	infraconfig "github.com/Meltveit/qrydex/infrastructure/config"
	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/bootstrap"
	"github.com/Meltveit/qrydex/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "qrydex",
	Short:         "Business verification crawler",
	Long:          `Qrydex verifies businesses against national registries, crawls their websites and scores how trustworthy they look.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultPath, "config file (CONFIG_PATH overrides the default)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Int("worker-id", -1, "worker index in [0, total-workers)")
	flags.Int("total-workers", 0, "number of workers sharing the record store")

	for key, flag := range map[string]string{
		"config":        "config",
		"debug":         "debug",
		"worker_id":     "worker-id",
		"total_workers": "total-workers",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
	viper.SetEnvPrefix("qrydex")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		versionCommand(),
		workerCommand(),
		crawlCommand(),
		verifyCommand(),
		importCommand(),
		serveCommand(),
	)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "qrydex %s\n", bootstrap.Version)
		},
	}
}

// loadConfig reads the config file and applies flag overrides on top of the
// file and environment.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if !rootCmd.PersistentFlags().Changed("config") {
		path = infraconfig.GetConfigPath(path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if viper.GetBool("debug") {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	if id := viper.GetInt("worker_id"); id >= 0 {
		cfg.Scheduler.WorkerID = id
	}
	if total := viper.GetInt("total_workers"); total > 0 {
		cfg.Scheduler.TotalWorkers = total
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func debugEnabled() bool {
	return viper.GetBool("debug")
}

// withApp loads the config, wires the application and runs fn with it.
func withApp(ctx context.Context, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", logger.Error(err))
		return err
	}
	defer app.Close()

	return fn(logger.WithContext(ctx, log), app)
}
