package cli

import (
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command, which prints the effective
// configuration with the DSN password masked.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}

			data, err := cfg.YAML()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to render config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
