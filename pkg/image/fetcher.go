package image

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/quayside/quayside/internal/style"
	"github.com/quayside/quayside/pkg/logging"
)

// DockerClient is the subset of the engine API the fetcher needs.
type DockerClient interface {
	ImagePull(ctx context.Context, ref string, options imagetypes.PullOptions) (io.ReadCloser, error)
	ImageInspectWithRaw(ctx context.Context, image string) (types.ImageInspect, []byte, error)
}

// Fetcher makes images available in the daemon, pulling them as dictated by
// the pull policy.
type Fetcher struct {
	docker DockerClient
	logger logging.Logger
}

func NewFetcher(logger logging.Logger, docker DockerClient) *Fetcher {
	return &Fetcher{
		logger: logger,
		docker: docker,
	}
}

var ErrNotFound = errors.New("not found")

func (f *Fetcher) Fetch(ctx context.Context, name string, pullPolicy PullPolicy) error {
	switch pullPolicy {
	case PullNever:
		return f.checkDaemonImage(ctx, name)
	case PullIfNotPresent:
		err := f.checkDaemonImage(ctx, name)
		if err == nil || !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	f.logger.Debugf("Pulling image %s", style.Symbol(name))

	if err := f.pullImage(ctx, name, logging.GetWriterForLevel(f.logger, logging.InfoLevel)); err != nil {
		return err
	}

	return f.checkDaemonImage(ctx, name)
}

// FetchAll fetches each image concurrently, prefixing every line of pull
// output with the image it belongs to. Lines from concurrent pulls are
// serialized through a shared locked writer.
func (f *Fetcher) FetchAll(ctx context.Context, names []string, pullPolicy PullPolicy) error {
	g, ctx := errgroup.WithContext(ctx)
	out := logging.NewLogWriter(logging.GetWriterForLevel(f.logger, logging.InfoLevel), time.Now, false)

	for _, name := range names {
		name := name

		g.Go(func() error {
			switch pullPolicy {
			case PullNever:
				return f.checkDaemonImage(ctx, name)
			case PullIfNotPresent:
				err := f.checkDaemonImage(ctx, name)
				if err == nil || !errors.Is(err, ErrNotFound) {
					return err
				}
			}

			writer := logging.NewPrefixWriter(out, name)
			defer writer.Close()

			if err := f.pullImage(ctx, name, writer); err != nil {
				return err
			}

			return f.checkDaemonImage(ctx, name)
		})
	}

	return g.Wait()
}

func (f *Fetcher) checkDaemonImage(ctx context.Context, name string) error {
	_, _, err := f.docker.ImageInspectWithRaw(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return errors.Wrapf(ErrNotFound, "image %s does not exist on the daemon", style.Symbol(name))
		}

		return err
	}

	return nil
}

func (f *Fetcher) pullImage(ctx context.Context, imageID string, writer io.Writer) error {
	rc, err := f.docker.ImagePull(ctx, imageID, imagetypes.PullOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return errors.Wrapf(ErrNotFound, "image %s does not exist in the registry", style.Symbol(imageID))
		}

		return err
	}

	termFd, isTerm := logging.IsTerminal(writer)

	err = jsonmessage.DisplayJSONMessagesStream(rc, &colorizedWriter{writer}, termFd, isTerm, nil)
	if err != nil {
		return err
	}

	return rc.Close()
}

type colorizedWriter struct {
	writer io.Writer
}

type colorFunc = func(string, ...interface{}) string

func (w *colorizedWriter) Write(p []byte) (n int, err error) {
	msg := string(p)
	colorizers := map[string]colorFunc{
		"Waiting":           style.Waiting,
		"Pulling fs layer":  style.Waiting,
		"Downloading":       style.Working,
		"Download complete": style.Working,
		"Extracting":        style.Working,
		"Pull complete":     style.Complete,
		"Already exists":    style.Complete,
		"=":                 style.ProgressBar,
		">":                 style.ProgressBar,
	}
	for pattern, colorize := range colorizers {
		msg = strings.ReplaceAll(msg, pattern, colorize(pattern))
	}
	return w.writer.Write([]byte(msg))
}
