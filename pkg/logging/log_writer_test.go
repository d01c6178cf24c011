package logging_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"github.com/quayside/quayside/pkg/logging"
	h "github.com/quayside/quayside/testhelpers"
)

const (
	timeFmt  = "2006/01/02 15:04:05.000000"
	testTime = "2026/08/05 01:01:01.000000"
)

func TestLogWriter(t *testing.T) {
	spec.Run(t, "LogWriter", testLogWriter, spec.Parallel(), spec.Report(report.Terminal{}))
}

func testLogWriter(t *testing.T, when spec.G, it spec.S) {
	var (
		writer *logging.LogWriter
		out    *bytes.Buffer

		clockFunc = func() time.Time {
			clock, _ := time.Parse(timeFmt, testTime)
			return clock
		}
	)

	it.Before(func() {
		out = &bytes.Buffer{}
	})

	when("wantTime is true", func() {
		it("has time", func() {
			writer = logging.NewLogWriter(out, clockFunc, true)
			_, err := writer.Write([]byte("test\n"))
			h.AssertNil(t, err)
			h.AssertEq(t, out.String(), "2026/08/05 01:01:01.000000 test\n")
		})
	})

	when("wantTime is false", func() {
		it("doesn't have time", func() {
			writer = logging.NewLogWriter(out, clockFunc, false)
			_, err := writer.Write([]byte("test\n"))
			h.AssertNil(t, err)
			h.AssertEq(t, out.String(), "test\n")
		})
	})

	when("a write carries several lines", func() {
		it("stamps each line", func() {
			writer = logging.NewLogWriter(out, clockFunc, true)
			_, err := writer.Write([]byte("first\nsecond\n"))
			h.AssertNil(t, err)
			h.AssertEq(t, out.String(), "2026/08/05 01:01:01.000000 first\n2026/08/05 01:01:01.000000 second\n")
		})
	})

	when("the message has no trailing line feed", func() {
		it("appends one", func() {
			writer = logging.NewLogWriter(out, clockFunc, false)
			_, err := writer.Write([]byte("test"))
			h.AssertNil(t, err)
			h.AssertEq(t, out.String(), "test\n")
		})
	})
}
