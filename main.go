package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/estima/pkg/auth"
	"github.com/harrisonrobin/estima/pkg/config"
	"github.com/harrisonrobin/estima/pkg/google"
	"github.com/harrisonrobin/estima/pkg/llm"
	"github.com/harrisonrobin/estima/pkg/logging"
	"github.com/harrisonrobin/estima/pkg/notion"
	"github.com/harrisonrobin/estima/pkg/openai"
	"github.com/harrisonrobin/estima/pkg/retry"
	"github.com/harrisonrobin/estima/pkg/runner"
)

var (
	envFile string
	debug   bool
	engine  string
	workers int
	verbose bool
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("unexpected fault", zap.Any("panic", r), zap.Stack("stack"))
			os.Exit(1)
		}
	}()

	if err := newRootCmd().Execute(); err != nil {
		zap.L().Error("run failed", zap.String("error", eris.ToString(err, verbose)))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "estima",
		Short:         "Estimate Notion projects and tasks with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to read (default: search .env upward)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "dry run: read and estimate, never write back")
	root.PersistentFlags().StringVar(&engine, "engine", "", "estimation engine: gemini or gpt (overrides ESTIMATOR_ENGINE)")
	root.PersistentFlags().IntVar(&workers, "workers", 0, "records processed in parallel (overrides WORKERS)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		flowCmd("projects", "Estimate whole-project durations in weeks", "projects"),
		flowCmd("tasks", "Estimate leaf tasks in quarter hours", "tasks"),
		flowCmd("all", "Estimate tasks, then projects", "tasks", "projects"),
		schemaCmd(),
	)
	return root
}

func flowCmd(use, short string, flows ...string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := setup(ctx, true, flows...)
			if err != nil {
				return err
			}
			defer a.close()

			for _, flow := range flows {
				profile, databaseID := a.profile(flow)
				log, err := a.runner.Run(ctx, profile, databaseID)
				if err != nil {
					return eris.Wrapf(err, "%s pass", flow)
				}
				s := log.Snapshot()
				fmt.Printf("%s [%s]: %d updated, %d failed, %d skipped of %d\n",
					flow, log.Mode, s.Updated, s.Failed, s.Skipped, s.Scanned)
			}
			return nil
		},
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Add the fingerprint property to both collections if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), false, "projects", "tasks")
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			for _, flow := range []string{"projects", "tasks"} {
				profile, databaseID := a.profile(flow)
				if err := a.runner.EnsureSchema(cmd.Context(), profile, databaseID); err != nil {
					return err
				}
				fmt.Printf("%s: %q present\n", flow, profile.Fingerprint)
			}
			return nil
		},
	}
}

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	runner   *runner.Runner
	provider llm.Provider
}

func (a *app) close() {
	if c, ok := a.provider.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing provider", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func (a *app) profile(flow string) (runner.Profile, string) {
	if flow == "projects" {
		return runner.Projects(), a.cfg.ProjectsDB
	}
	return runner.Tasks(), a.cfg.TasksDB
}

// setup loads the configuration and wires the store, the provider and the
// runner. withEngine is false for commands that never call a provider.
func setup(ctx context.Context, withEngine bool, flows ...string) (*app, error) {
	// 1. Configuration, then flag overrides
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}
	if engine != "" {
		cfg.Engine = engine
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	// 2. Logger
	logger, err := logging.New(verbose)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	if withEngine {
		err = cfg.Validate(flows...)
	} else {
		err = cfg.ValidateStore(flows...)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("configuration loaded",
		zap.String("env_file", cfg.EnvFile),
		zap.String("engine", cfg.Engine),
		zap.Bool("debug", cfg.Debug),
		zap.Int("workers", cfg.Workers),
	)

	// 3. One rate-limit gate for every remote call in the process
	policy := retry.NewPolicy(retry.NewGate(nil), logger)
	policy.Timeout = cfg.RequestTimeout

	store := notion.NewClient(
		auth.NewClient(cfg.NotionToken,
			auth.WithTimeout(cfg.RequestTimeout),
			auth.WithHeader("Notion-Version", cfg.NotionVersion),
		),
		cfg.NotionBaseURL, policy, logger,
	)

	// 4. Provider
	var (
		provider  llm.Provider
		estimator runner.Estimator
	)
	if withEngine {
		provider, err = newProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		estimator = llm.NewEstimator(provider, policy, logger)
	}

	r := runner.New(store, estimator, runner.Options{
		Engine:  cfg.Engine,
		LogDir:  cfg.LogDir,
		Debug:   cfg.Debug,
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return &app{cfg: cfg, logger: logger, runner: r, provider: provider}, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.Engine {
	case config.EngineGPT:
		httpClient := auth.NewClient(cfg.GPTKey, auth.WithTimeout(cfg.RequestTimeout))
		return openai.NewClient(httpClient, cfg.GPTBaseURL, cfg.GPTModel), nil
	default:
		return google.NewClient(ctx, cfg.GeminiKey, cfg.GeminiModel)
	}
}
