package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/team-of-2/novelize/notes/provider"
	"github.com/team-of-2/novelize/notes/store"
	"github.com/team-of-2/novelize/notes/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(newApp()).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// app carries resolved configuration and the seams tests replace.
type app struct {
	flags      Config
	configPath string
	cfg        Config

	logger  *zap.Logger
	fs      afero.Fs
	environ func() []string

	newInvoker func(ctx context.Context, cfg Config, logger *zap.Logger) (provider.Invoker, error)
	newStore   func(ctx context.Context, cfg Config) (store.Store, error)

	shutdownTracing func(context.Context) error
}

func newApp() *app {
	a := &app{
		fs:         afero.NewOsFs(),
		environ:    os.Environ,
		newInvoker: defaultInvoker,
	}
	a.newStore = a.defaultStore
	return a
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "novelize",
		Short: "Keep running character notes for a story, paragraph by paragraph",
		Long: `novelize sends each paragraph to a hosted model, collects "Name: Action" notes per
character, and keeps every character's notes under a word budget.

Sessions can be saved to a file or S3 store and resumed later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}
	bindFlags(root.PersistentFlags(), &a.flags, &a.configPath)

	root.AddCommand(
		newAnalyzeCmd(a),
		newSummarizeCmd(a),
		newShowCmd(a),
		newExportCmd(a),
		newListCmd(a),
		newDeleteCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newSchemaCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := resolveConfig(a.fs, cmd.Flags(), a.flags, a.configPath, a.environ())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger == nil {
		zc := zap.NewProductionConfig()
		if cfg.Verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}

	shutdown, err := telemetry.Setup(cmd.Context(), telemetry.Config{
		ServiceName: "novelize",
		Endpoint:    cfg.OTelEndpoint,
		Disabled:    cfg.OTelDisabled,
	})
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	var err error
	if a.shutdownTracing != nil {
		err = a.shutdownTracing(context.WithoutCancel(ctx))
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func defaultInvoker(ctx context.Context, cfg Config, logger *zap.Logger) (provider.Invoker, error) {
	switch cfg.Provider {
	case providerOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("missing OPENAI_API_KEY (or pass --api-key)")
		}
		return provider.NewOpenAIInvoker(cfg.APIKey, cfg.OpenAIModel, logger), nil
	default:
		inv, err := provider.NewBedrockInvoker(ctx, provider.BedrockConfig{Region: cfg.Region, ModelID: cfg.ModelID}, logger)
		if err != nil {
			return nil, err
		}
		return inv, nil
	}
}

func (a *app) defaultStore(ctx context.Context, cfg Config) (store.Store, error) {
	if cfg.Store == storeS3 {
		s, err := store.NewS3Store(ctx, store.S3Config{Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix, Region: cfg.Region})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return store.NewFileStore(a.fs, cfg.StoreDir), nil
}
