package client

import (
	"context"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/go-units"
	"github.com/pkg/errors"

	"github.com/quayside/quayside/internal/style"
	"github.com/quayside/quayside/pkg/buildkit"
	"github.com/quayside/quayside/pkg/logging"
)

// BuildOptions describes an image build.
type BuildOptions struct {
	// Image is the tag for the built image. Required.
	Image string

	// ContextDir is the directory to use as the build context.
	ContextDir string

	// Dockerfile is the path of the Dockerfile within the build context.
	// Defaults to "Dockerfile".
	Dockerfile string

	// AdditionalTags are tags applied to the image besides Image.
	AdditionalTags []string

	// BuildArgs are passed to the daemon as build arguments.
	BuildArgs map[string]*string

	// NoCache disables the daemon's build cache.
	NoCache bool

	// PullParent always pulls newer versions of base images.
	PullParent bool
}

// Build builds an image using the daemon's BuildKit builder and returns the
// ID of the built image. The daemon's build output is rendered to the
// logger's info writer; a build failure reported by the daemon is returned as
// an error once the daemon's stream ends.
func (c *Client) Build(ctx context.Context, opts BuildOptions) (string, error) {
	if opts.Image == "" {
		return "", errors.New("image name is required")
	}

	contextDir, err := filepath.Abs(opts.ContextDir)
	if err != nil {
		return "", errors.Wrapf(err, "invalid build context path '%s'", opts.ContextDir)
	}

	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return "", errors.Wrap(err, "creating build context")
	}
	defer buildContext.Close()

	response, err := c.docker.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       append([]string{opts.Image}, opts.AdditionalTags...),
		Dockerfile: dockerfile,
		BuildArgs:  opts.BuildArgs,
		NoCache:    opts.NoCache,
		PullParent: opts.PullParent,
		Remove:     true,
		Version:    types.BuilderBuildKit,
	})
	if err != nil {
		return "", errors.Wrap(err, "starting image build")
	}
	defer response.Body.Close()

	var (
		imageID  string
		buildErr error
	)

	decoder := buildkit.NewDecoder(logging.GetWriterForLevel(c.logger, logging.InfoLevel), func(event buildkit.BuildEvent) {
		switch event := event.(type) {
		case buildkit.BuildError:
			buildErr = errors.New(event.Message)
		case buildkit.BuildComplete:
			imageID = event.ImageID
		case buildkit.BuildProgress:
			c.logBuildProgress(event)
		}
	})

	if err := decoder.Decode(response.Body); err != nil {
		return "", errors.Wrap(err, "decoding daemon build response")
	}

	if buildErr != nil {
		return "", buildErr
	}

	if imageID == "" {
		// Older daemons don't send the image ID envelope.
		inspect, _, err := c.docker.ImageInspectWithRaw(ctx, opts.Image)
		if err != nil {
			return "", errors.Wrap(err, "inspecting built image")
		}

		imageID = inspect.ID
	}

	c.logger.Debugf("Built image %s", style.Symbol(imageID))

	return imageID, nil
}

func (c *Client) logBuildProgress(progress buildkit.BuildProgress) {
	if !c.logger.IsVerbose() {
		return
	}

	for _, step := range progress.Steps {
		if !step.Transferring {
			c.logger.Debugf("step %d (%s): running", step.StepIndex+1, step.Name)
			continue
		}

		c.logger.Debugf(
			"step %d (%s): %s %s / %s",
			step.StepIndex+1,
			step.Name,
			step.Operation,
			units.HumanSize(float64(step.CompletedBytes)),
			units.HumanSize(float64(step.TotalBytes)),
		)
	}
}
