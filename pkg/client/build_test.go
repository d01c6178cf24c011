package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	imagetypes "github.com/docker/docker/api/types/image"
	controlapi "github.com/moby/buildkit/api/services/control"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/quayside/quayside/pkg/client"
	"github.com/quayside/quayside/pkg/logging"
	h "github.com/quayside/quayside/testhelpers"
)

func TestBuild(t *testing.T) {
	spec.Run(t, "Build", testBuild, spec.Report(report.Terminal{}))
}

type fakeDockerClient struct {
	buildOptions types.ImageBuildOptions
	buildBody    string
	buildErr     error
	inspectID    string
}

func (f *fakeDockerClient) ImageBuild(_ context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.buildOptions = options

	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return types.ImageBuildResponse{}, err
	}

	if f.buildErr != nil {
		return types.ImageBuildResponse{}, f.buildErr
	}

	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.buildBody))}, nil
}

func (f *fakeDockerClient) ImagePull(context.Context, string, imagetypes.PullOptions) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDockerClient) ImageInspectWithRaw(context.Context, string) (types.ImageInspect, []byte, error) {
	if f.inspectID == "" {
		return types.ImageInspect{}, nil, errors.New("no such image")
	}

	return types.ImageInspect{ID: f.inspectID}, nil, nil
}

func testBuild(t *testing.T, when spec.G, it spec.S) {
	var (
		docker     *fakeDockerClient
		out        *bytes.Buffer
		subject    *client.Client
		contextDir string
	)

	traceLine := func(status *controlapi.StatusResponse) string {
		encoded, err := status.Marshal()
		h.AssertNil(t, err)

		aux, err := json.Marshal(encoded)
		h.AssertNil(t, err)

		return fmt.Sprintf(`{"id":"moby.buildkit.trace","aux":%s}`, aux)
	}

	singleStepTrace := func() string {
		started := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
		completed := started.Add(time.Second)

		return traceLine(&controlapi.StatusResponse{
			Vertexes: []*controlapi.Vertex{
				{
					Digest:    digest.Digest("sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
					Name:      "[internal] load metadata for docker.io/library/alpine:3.12",
					Started:   &started,
					Completed: &completed,
				},
			},
		})
	}

	it.Before(func() {
		docker = &fakeDockerClient{}
		out = &bytes.Buffer{}

		var err error
		subject, err = client.NewClient(
			client.WithLogger(logging.NewLogWithWriter(out)),
			client.WithDockerClient(docker),
		)
		h.AssertNil(t, err)

		contextDir = t.TempDir()
		h.AssertNil(t, os.WriteFile(filepath.Join(contextDir, "Dockerfile"), []byte("FROM alpine:3.12\n"), 0600))
	})

	when("the build succeeds", func() {
		it("requests a BuildKit build with the requested tags", func() {
			docker.buildBody = singleStepTrace() + "\n" + `{"id":"moby.image.id","aux":{"ID":"sha256:abc123"}}` + "\n"

			imageID, err := subject.Build(context.Background(), client.BuildOptions{
				Image:          "my-app:latest",
				ContextDir:     contextDir,
				AdditionalTags: []string{"my-app:v1"},
			})
			h.AssertNil(t, err)

			h.AssertEq(t, imageID, "sha256:abc123")
			h.AssertEq(t, docker.buildOptions.Version, types.BuilderBuildKit)
			h.AssertEq(t, docker.buildOptions.Tags, []string{"my-app:latest", "my-app:v1"})
			h.AssertEq(t, docker.buildOptions.Dockerfile, "Dockerfile")
		})

		it("renders the daemon's build output", func() {
			docker.buildBody = singleStepTrace() + "\n" + `{"id":"moby.image.id","aux":{"ID":"sha256:abc123"}}` + "\n"

			_, err := subject.Build(context.Background(), client.BuildOptions{Image: "my-app:latest", ContextDir: contextDir})
			h.AssertNil(t, err)

			h.AssertContains(t, out.String(), "#1 [internal] load metadata for docker.io/library/alpine:3.12\n")
			h.AssertContains(t, out.String(), "#1 DONE\n")
		})

		it("falls back to inspecting the image when the daemon sends no image ID", func() {
			docker.buildBody = singleStepTrace() + "\n"
			docker.inspectID = "sha256:def456"

			imageID, err := subject.Build(context.Background(), client.BuildOptions{Image: "my-app:latest", ContextDir: contextDir})
			h.AssertNil(t, err)

			h.AssertEq(t, imageID, "sha256:def456")
		})
	})

	when("the daemon reports a build failure", func() {
		it("returns the daemon's error", func() {
			docker.buildBody = singleStepTrace() + "\n" + `{"error":"build failed: executor failed"}` + "\n"

			_, err := subject.Build(context.Background(), client.BuildOptions{Image: "my-app:latest", ContextDir: contextDir})
			h.AssertError(t, err, "build failed: executor failed")
		})
	})

	when("the daemon sends an unparseable response", func() {
		it("fails with a decoding error", func() {
			docker.buildBody = "this is not valid JSON\n"

			_, err := subject.Build(context.Background(), client.BuildOptions{Image: "my-app:latest", ContextDir: contextDir})
			h.AssertErrorContains(t, err, "decoding daemon build response")
		})
	})

	when("the build cannot be started", func() {
		it("fails without an image name", func() {
			_, err := subject.Build(context.Background(), client.BuildOptions{ContextDir: contextDir})
			h.AssertError(t, err, "image name is required")
		})

		it("wraps errors from the daemon", func() {
			docker.buildErr = errors.New("cannot connect to the Docker daemon")

			_, err := subject.Build(context.Background(), client.BuildOptions{Image: "my-app:latest", ContextDir: contextDir})
			h.AssertErrorContains(t, err, "starting image build")
		})
	})
}
