package cli

import (
	"github.com/spf13/cobra"

	"github.com/turtacn/leadscope/internal/config"
)

// NewConfigCmd creates the config command.  Its subcommands load the
// configuration themselves so that a broken file is reported, not fatal.
func NewConfigCmd(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutputFormat(opts.OutputFormat)
		},
	}
	cmd.AddCommand(newConfigValidateCmd(opts), newConfigShowCmd(opts))
	return cmd
}

func newConfigValidateCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and check every invariant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := initConfig(opts); err != nil {
				return err
			}
			PrintSuccess(cmd, "configuration is valid")
			return nil
		},
	}
}

func newConfigShowCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig(opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), redact(cfg))
		},
	}
}

const redacted = "******"

// redact returns a copy of cfg with secrets masked.
func redact(cfg *config.Config) *config.Config {
	c := *cfg
	if c.Database.Password != "" {
		c.Database.Password = redacted
	}
	if c.Redis.Password != "" {
		c.Redis.Password = redacted
	}
	if c.MinIO.SecretAccessKey != "" {
		c.MinIO.SecretAccessKey = redacted
	}
	return &c
}
