package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/harrisonrobin/taskbridge/pkg/auth"
	"github.com/harrisonrobin/taskbridge/pkg/config"
	"github.com/harrisonrobin/taskbridge/pkg/logger"
	"github.com/harrisonrobin/taskbridge/pkg/source"
	"github.com/harrisonrobin/taskbridge/pkg/tasksync"
	"github.com/spf13/cobra"
	"google.golang.org/api/tasks/v1"
)

const lockFile = "sync.lock"

var errLocked = errors.New("another sync is already running")

type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "taskbridge",
		Short:         "Mirror an authoritative task store into a peer store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default "+config.GetConfigPath()+")")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "emit logs as JSON")

	root.AddCommand(newSyncCmd(flags), newAuthCmd(flags), newSetTaskListCmd(flags))
	return root
}

// setup loads the configuration and builds the logger it asks for. Flags
// override the file and environment.
func setup(cmd *cobra.Command, flags *rootFlags) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = flags.logJSON
	}

	lcfg := logger.DefaultConfig()
	lcfg.Level = logger.LogLevel(cfg.Log.Level)
	lcfg.JSON = cfg.Log.JSON
	lcfg.Output = cmd.ErrOrStderr()
	return cfg, logger.NewLogger(lcfg), nil
}

func newSyncCmd(flags *rootFlags) *cobra.Command {
	var (
		dryRun      bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.Sync.DryRun = dryRun
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Sync.Concurrency = concurrency
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			res, err := runSync(cmd.Context(), cfg, config.Dir(), log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pairs, %d added, %d updated, %d failed\n",
				res.Pairs, res.Added, res.Updated, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d mutations failed", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log changes to the other store instead of applying them")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of pairs reconciled at once")
	return cmd
}

// runSync performs one pass while holding the run lock in dir.
func runSync(ctx context.Context, cfg *config.Config, dir string, log logger.Logger) (*tasksync.Result, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !locked {
		return nil, errLocked
	}
	defer func() { _ = lock.Unlock() }()

	ctx = logger.ContextWithLogger(ctx, log)
	exchange, closeExchange, err := buildSource(ctx, cfg.Exchange, source.RoleExchange, dir, log)
	if err != nil {
		return nil, fmt.Errorf("exchange: %w", err)
	}
	defer closeExchange()

	other, closeOther, err := buildSource(ctx, cfg.Other, source.RoleOther, dir, log)
	if err != nil {
		return nil, fmt.Errorf("other: %w", err)
	}
	defer closeOther()

	if cfg.Sync.DryRun {
		other = source.DryRun(other, log)
	}

	syncer := tasksync.New(exchange, other,
		tasksync.WithLogger(log),
		tasksync.WithConcurrency(cfg.Sync.Concurrency),
	)
	return syncer.SyncAll(ctx, nil)
}

func newAuthCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Tasks, replacing any cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			dir := config.Dir()
			if err := auth.ResetToken(dir); err != nil {
				return err
			}
			ctx := logger.ContextWithLogger(cmd.Context(), log)
			if _, err := auth.GetClient(ctx, dir, []string{tasks.TasksScope}); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			log.Info("authentication successful", "token", filepath.Join(dir, auth.TokenFile))
			return nil
		},
	}
}

func newSetTaskListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set-tasklist NAME",
		Short: "Set the Google task list used by the google source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Only the file is consulted so environment overrides never end
			// up persisted.
			cfg, err := config.LoadFile(flags.configPath)
			if err != nil {
				return err
			}
			var key string
			switch {
			case cfg.Other.Kind == config.KindGoogle:
				key = "other.tasklist"
			case cfg.Exchange.Kind == config.KindGoogle:
				key = "exchange.tasklist"
			default:
				return errors.New("neither side is configured as a google source")
			}
			if err := config.Set(flags.configPath, key, args[0]); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task list set to: %s\n", args[0])
			return nil
		},
	}
}
