package main

import (
	"github.com/andrelcunha/ottermock/config"
	"github.com/andrelcunha/ottermock/pkg/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfg      *config.Config
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "ottermock",
		Short:         "In-process AMQP broker simulator",
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load configuration from .env file, environment variables, or defaults
			opts.cfg = config.LoadConfig(VERSION)
			if opts.logLevel != "" {
				opts.cfg.LogLevel = opts.logLevel
			}
			logger.InitWithWriter(opts.cfg.LogLevel, cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides OTTERMOCK_LOG_LEVEL)")

	cmd.AddCommand(newMatchCommand())
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}
