package client_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/quayside/quayside/pkg/client"
	"github.com/quayside/quayside/pkg/image"
	"github.com/quayside/quayside/pkg/logging"
	h "github.com/quayside/quayside/testhelpers"
)

func TestClient(t *testing.T) {
	spec.Run(t, "Client", testClient, spec.Parallel(), spec.Report(report.Terminal{}))
}

type fakeFetcher struct {
	fetched    []string
	fetchedAll [][]string
	policy     image.PullPolicy
}

func (f *fakeFetcher) Fetch(_ context.Context, name string, pullPolicy image.PullPolicy) error {
	f.fetched = append(f.fetched, name)
	f.policy = pullPolicy
	return nil
}

func (f *fakeFetcher) FetchAll(_ context.Context, names []string, pullPolicy image.PullPolicy) error {
	f.fetchedAll = append(f.fetchedAll, names)
	f.policy = pullPolicy
	return nil
}

func testClient(t *testing.T, when spec.G, it spec.S) {
	var (
		fetcher *fakeFetcher
		subject *client.Client
	)

	it.Before(func() {
		fetcher = &fakeFetcher{}

		var err error
		subject, err = client.NewClient(
			client.WithLogger(logging.NewLogWithWriter(&bytes.Buffer{})),
			client.WithDockerClient(&fakeDockerClient{}),
			client.WithFetcher(fetcher),
		)
		h.AssertNil(t, err)
	})

	when("pulling a single image", func() {
		it("fetches it directly", func() {
			h.AssertNil(t, subject.Pull(context.Background(), []string{"alpine:3.12"}, image.PullIfNotPresent))

			h.AssertEq(t, fetcher.fetched, []string{"alpine:3.12"})
			h.AssertEq(t, len(fetcher.fetchedAll), 0)
			h.AssertEq(t, fetcher.policy, image.PullIfNotPresent)
		})
	})

	when("pulling several images", func() {
		it("fetches them as a batch", func() {
			h.AssertNil(t, subject.Pull(context.Background(), []string{"alpine:3.12", "postgres:16"}, image.PullAlways))

			h.AssertEq(t, fetcher.fetchedAll, [][]string{{"alpine:3.12", "postgres:16"}})
			h.AssertEq(t, len(fetcher.fetched), 0)
		})
	})
}
