// Package cmd is the imagestream command line: one-shot generation from the
// terminal, the proxy and generate API server, and a few diagnostics.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imagestream/core"
	"imagestream/logging"
)

// NewCLI builds the root command with every subcommand attached.
func NewCLI() *cobra.Command {
	root := &cobra.Command{
		Use:           "imagestream",
		Short:         "Generate images and stream them as they arrive",
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(core.ExitCodeUsage, err)
	})

	root.PersistentFlags().Bool("dev", false, "Development logging (overrides DEV_MODE)")
	root.PersistentFlags().String("log-file", "", "Log file path (overrides LOG_FILE)")

	cobra.EnableCommandSorting = false
	root.AddCommand(
		newGenerateCmd(),
		newServeCmd(),
		newProbeCmd(),
		newCheckCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewCLI()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// loadConfig reads the environment and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*core.Config, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("dev") {
		cfg.DevMode, _ = cmd.Flags().GetBool("dev")
	}
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		cfg.LogFile = path
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg.
func newLogger(cmd *cobra.Command, cfg *core.Config) (*logging.Logger, error) {
	logger, err := logging.NewLogger(cfg.DevMode, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("Configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("provider", cfg.Provider),
		zap.String("endpoint", cfg.ImageAPIURL),
		zap.Duration("ai_timeout", cfg.AITimeout),
	)
	return logger, nil
}

func syncLogger(logger *logging.Logger) func(context.Context) error {
	return func(context.Context) error {
		// stdout cannot be synced on most terminals; the error is noise.
		_ = logger.Sync()
		return nil
	}
}
