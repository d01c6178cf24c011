package main

import (
	"os"

	"github.com/heroku/color"
	"github.com/spf13/cobra"

	"github.com/quayside/quayside/internal/commands"
	"github.com/quayside/quayside/pkg/client"
	"github.com/quayside/quayside/pkg/logging"
)

// Version is set at build time through -ldflags.
var Version = "0.0.0"

func main() {
	var (
		noColor    bool
		timestamps bool
		quiet      bool
		verbose    bool
	)

	logger := logging.NewLogWithWriter(os.Stdout)

	quaysideClient, err := client.NewClient(client.WithLogger(logger))
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "quayside",
		Short: "Drive container image builds through the Docker daemon",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Disable(noColor)
			logger.WantTime(timestamps)
			logger.WantColor(!noColor)

			if quiet {
				logger.WantQuiet(true)
			}

			if verbose {
				logger.WantVerbose(true)
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().BoolVar(&timestamps, "timestamps", false, "Enable timestamps in output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Show less output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show more output")
	commands.AddHelpFlag(rootCmd, "quayside")

	rootCmd.AddCommand(commands.Build(logger, quaysideClient))
	rootCmd.AddCommand(commands.Pull(logger, quaysideClient))
	rootCmd.AddCommand(commands.Version(logger, Version))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
