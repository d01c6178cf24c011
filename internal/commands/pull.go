package commands

import (
	"github.com/spf13/cobra"

	"github.com/quayside/quayside/pkg/image"
	"github.com/quayside/quayside/pkg/logging"
)

// Pull images into the daemon
func Pull(logger logging.Logger, quaysideClient QuaysideClient) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "pull <image-name> [<image-name>...]",
		Args:  cobra.MinimumNArgs(1),
		Short: "Make images available in the daemon",
		RunE: logError(logger, func(cmd *cobra.Command, args []string) error {
			pullPolicy, err := image.ParsePullPolicy(policy)
			if err != nil {
				return err
			}

			return quaysideClient.Pull(CreateCancellableContext(), args, pullPolicy)
		}),
	}

	cmd.Flags().StringVar(&policy, "pull-policy", "", `Pull policy to use ("always", "never" or "if-not-present") (default: "always")`)
	AddHelpFlag(cmd, "pull")

	return cmd
}
