package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"imagestream/core"
	"imagestream/core/validation"
)

func newCheckCmd() *cobra.Command {
	var (
		offline bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check configuration, downloads directory and endpoint reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				var cfgErr *core.ConfigError
				if !errors.As(err, &cfgErr) {
					return err
				}
				// Report the invalid settings as a failed step rather than aborting.
				cfg = core.LoadConfigUnchecked()
			}

			result := validation.NewSuite(cfg).
				WithOutput(cmd.OutOrStdout()).
				WithTimeout(timeout).
				WithSkipNetwork(offline).
				Validate(cmd.Context(), cfg)
			if !result.Success {
				return withExitCode(core.ExitCodeError, errors.New(result.Summary()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the connectivity checks")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for each connectivity check")
	return cmd
}
