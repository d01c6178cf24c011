/*
Package client provides the functionality of quayside as a Go library.

A Client drives container image builds and pulls through a Docker daemon,
rendering daemon output the way the Docker CLI does.
*/
package client

import (
	"context"
	"io"
	"os"

	"github.com/docker/docker/api/types"
	imagetypes "github.com/docker/docker/api/types/image"
	dockerClient "github.com/docker/docker/client"
	"github.com/pkg/errors"

	"github.com/quayside/quayside/pkg/image"
	"github.com/quayside/quayside/pkg/logging"
)

// DockerClient is the subset of the engine API used by this package.
type DockerClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePull(ctx context.Context, ref string, options imagetypes.PullOptions) (io.ReadCloser, error)
	ImageInspectWithRaw(ctx context.Context, image string) (types.ImageInspect, []byte, error)
}

// ImageFetcher makes images available in the daemon.
type ImageFetcher interface {
	Fetch(ctx context.Context, name string, pullPolicy image.PullPolicy) error
	FetchAll(ctx context.Context, names []string, pullPolicy image.PullPolicy) error
}

// Client is an orchestration object for building images through a Docker
// daemon. All settings on this object should be changed through Option
// functions.
type Client struct {
	logger       logging.Logger
	docker       DockerClient
	imageFetcher ImageFetcher
}

// Option is a type of function that mutates settings on the client.
type Option func(c *Client)

// WithLogger supply your own logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithDockerClient supply your own docker client.
func WithDockerClient(docker DockerClient) Option {
	return func(c *Client) {
		c.docker = docker
	}
}

// WithFetcher supply your own image fetcher.
func WithFetcher(f ImageFetcher) Option {
	return func(c *Client) {
		c.imageFetcher = f
	}
}

// DockerAPIVersion is the oldest engine API version quayside needs.
const DockerAPIVersion = "1.38"

// NewClient allocates and returns a Client configured with the specified
// options.
func NewClient(opts ...Option) (*Client, error) {
	client := &Client{}

	for _, opt := range opts {
		opt(client)
	}

	if client.logger == nil {
		client.logger = logging.NewLogWithWriter(os.Stderr)
	}

	if client.docker == nil {
		var err error
		client.docker, err = dockerClient.NewClientWithOpts(
			dockerClient.FromEnv,
			dockerClient.WithVersion(DockerAPIVersion),
		)
		if err != nil {
			return nil, errors.Wrap(err, "creating docker client")
		}
	}

	if client.imageFetcher == nil {
		client.imageFetcher = image.NewFetcher(client.logger, client.docker)
	}

	return client, nil
}

// Pull makes each of the given images available in the daemon.
func (c *Client) Pull(ctx context.Context, names []string, pullPolicy image.PullPolicy) error {
	if len(names) == 1 {
		return c.imageFetcher.Fetch(ctx, names[0], pullPolicy)
	}

	return c.imageFetcher.FetchAll(ctx, names, pullPolicy)
}
