package buildkit

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/jsonmessage"
	controlapi "github.com/moby/buildkit/api/services/control"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

const (
	imageIDStreamID = "moby.image.id"
	traceStreamID   = "moby.buildkit.trace"

	// Trace envelopes carry a whole base64-encoded status message, so lines
	// run far beyond bufio's default limit.
	maxResponseLineBytes = 16 * 1024 * 1024
)

// Decoder consumes the newline-delimited JSON stream produced by a
// BuildKit-enabled daemon during an image build. It writes a human-readable
// transcript of the build to out and delivers structured events through
// onEvent.
//
// A Decoder holds per-build state and must be used for exactly one build.
// It is not safe for concurrent use; Decode drives everything from the
// caller's goroutine.
type Decoder struct {
	out     io.Writer
	onEvent EventCallback

	startedVertices  map[digest.Digest]*vertexInfo
	activeVertices   map[digest.Digest]struct{}
	pendingCompleted map[digest.Digest]*controlapi.Vertex
	lastWritten      digest.Digest
	lastProgress     []ActiveImageBuildStep
}

// NewDecoder creates a decoder for a single image build. The output writer is
// borrowed: the decoder flushes it at end of stream (when it implements
// Flush() error) but never closes it.
func NewDecoder(out io.Writer, onEvent EventCallback) *Decoder {
	return &Decoder{
		out:     out,
		onEvent: onEvent,

		startedVertices:  map[digest.Digest]*vertexInfo{},
		activeVertices:   map[digest.Digest]struct{}{},
		pendingCompleted: map[digest.Digest]*controlapi.Vertex{},
	}
}

// Decode reads the build response until end of stream. It returns a
// MalformedResponseError if a line is not valid JSON, a ProtocolError if the
// daemon violates the build response contract, or the underlying read or
// write error otherwise. Build failures reported by the daemon are not
// errors: they are delivered as BuildError events and decoding continues.
func (d *Decoder) Decode(response io.Reader) error {
	scanner := bufio.NewScanner(response)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseLineBytes)

	for scanner.Scan() {
		if err := d.decodeLine(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading daemon build response")
	}

	if err := d.flushAllPendingCompletions(); err != nil {
		return err
	}

	return d.flushOutput()
}

func (d *Decoder) decodeLine(line string) error {
	var msg jsonmessage.JSONMessage

	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return &MalformedResponseError{Line: line}
	}

	if msg.ErrorMessage != "" {
		d.onEvent(BuildError{Message: msg.ErrorMessage})
	}

	switch msg.ID {
	case imageIDStreamID:
		return d.decodeImageID(&msg)
	case traceStreamID:
		return d.decodeTrace(&msg)
	}

	// Anything else is something newer daemons might send that we don't need.
	return nil
}

func (d *Decoder) decodeImageID(msg *jsonmessage.JSONMessage) error {
	if msg.Aux == nil {
		return protocolErrorf("daemon returned an image ID response with no image ID")
	}

	var result types.BuildResult

	if err := json.Unmarshal(*msg.Aux, &result); err != nil {
		return protocolErrorf("daemon returned an unparseable image ID response: %s", err)
	}

	if result.ID == "" {
		return protocolErrorf("daemon returned an image ID response with no image ID")
	}

	d.onEvent(BuildComplete{ImageID: result.ID})

	return nil
}

func (d *Decoder) decodeTrace(msg *jsonmessage.JSONMessage) error {
	if msg.Aux == nil {
		return protocolErrorf("daemon returned a build trace response with no trace data")
	}

	var encoded []byte

	if err := json.Unmarshal(*msg.Aux, &encoded); err != nil {
		return protocolErrorf("daemon returned a build trace response with invalid trace data: %s", err)
	}

	var status controlapi.StatusResponse

	if err := status.Unmarshal(encoded); err != nil {
		return protocolErrorf("daemon returned an unparseable build status: %s", err)
	}

	if err := d.writeTranscript(&status); err != nil {
		return err
	}

	return d.updateProgress(&status)
}

func (d *Decoder) flushOutput() error {
	flusher, ok := d.out.(interface{ Flush() error })
	if !ok {
		return nil
	}

	return errors.Wrap(flusher.Flush(), "flushing build output")
}
