package commands

import (
	"github.com/spf13/cobra"

	"github.com/quayside/quayside/internal/style"
	"github.com/quayside/quayside/pkg/client"
	"github.com/quayside/quayside/pkg/logging"
)

// BuildFlags define flags provided to the build command
type BuildFlags struct {
	Path       string
	Dockerfile string
	Tags       []string
	BuildArgs  []string
	NoCache    bool
	Pull       bool
}

// Build an image from a Dockerfile
func Build(logger logging.Logger, quaysideClient QuaysideClient) *cobra.Command {
	var flags BuildFlags

	cmd := &cobra.Command{
		Use:   "build <image-name>",
		Args:  cobra.ExactArgs(1),
		Short: "Build an image with the daemon's BuildKit builder",
		RunE: logError(logger, func(cmd *cobra.Command, args []string) error {
			imageName := args[0]

			buildArgs, err := parseBuildArgs(flags.BuildArgs)
			if err != nil {
				return err
			}

			imageID, err := quaysideClient.Build(CreateCancellableContext(), client.BuildOptions{
				Image:          imageName,
				ContextDir:     flags.Path,
				Dockerfile:     flags.Dockerfile,
				AdditionalTags: flags.Tags,
				BuildArgs:      buildArgs,
				NoCache:        flags.NoCache,
				PullParent:     flags.Pull,
			})
			if err != nil {
				return err
			}

			logger.Infof("Successfully built image %s", style.Symbol(imageID))
			return nil
		}),
	}

	cmd.Flags().StringVarP(&flags.Path, "path", "p", ".", "Path to the build context")
	cmd.Flags().StringVarP(&flags.Dockerfile, "file", "f", "", "Path of the Dockerfile within the build context (default: 'Dockerfile')")
	cmd.Flags().StringSliceVarP(&flags.Tags, "tag", "t", nil, "Additional tags to apply to the built image")
	cmd.Flags().StringArrayVar(&flags.BuildArgs, "build-arg", nil, "Build arguments, in the form 'KEY=VALUE'")
	cmd.Flags().BoolVar(&flags.NoCache, "no-cache", false, "Build without the daemon's build cache")
	cmd.Flags().BoolVar(&flags.Pull, "pull", false, "Always pull newer versions of base images")
	AddHelpFlag(cmd, "build")

	return cmd
}
