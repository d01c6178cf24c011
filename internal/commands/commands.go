package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/quayside/quayside/pkg/client"
	"github.com/quayside/quayside/pkg/image"
	"github.com/quayside/quayside/pkg/logging"
)

// QuaysideClient is the subset of the client used by the commands.
type QuaysideClient interface {
	Build(ctx context.Context, opts client.BuildOptions) (string, error)
	Pull(ctx context.Context, names []string, pullPolicy image.PullPolicy) error
}

// AddHelpFlag adds a help flag so cobra doesn't add its own.
func AddHelpFlag(cmd *cobra.Command, commandName string) {
	cmd.Flags().BoolP("help", "h", false, fmt.Sprintf("Help for '%s'", commandName))
}

// CreateCancellableContext returns a context that is cancelled when the
// process is interrupted.
func CreateCancellableContext() context.Context {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-signals
		cancel()
	}()

	return ctx
}

func logError(logger logging.Logger, f func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true

		err := f(cmd, args)
		if err != nil {
			logger.Error(err.Error())
		}

		return err
	}
}

func parseBuildArgs(args []string) (map[string]*string, error) {
	if len(args) == 0 {
		return nil, nil
	}

	buildArgs := map[string]*string{}

	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if parts[0] == "" {
			return nil, errors.Errorf("invalid build arg '%s'", arg)
		}

		if len(parts) == 1 {
			// A bare key takes its value from the environment, like the CLI.
			if value, ok := os.LookupEnv(parts[0]); ok {
				buildArgs[parts[0]] = &value
			} else {
				buildArgs[parts[0]] = nil
			}

			continue
		}

		value := parts[1]
		buildArgs[parts[0]] = &value
	}

	return buildArgs, nil
}
