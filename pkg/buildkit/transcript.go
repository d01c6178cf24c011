package buildkit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	controlapi "github.com/moby/buildkit/api/services/control"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// The exporting vertex never declares its real inputs, but it only ever runs
// once everything else is finished, so its start is a safe point to flush
// every deferred completion.
const exportingVertexName = "exporting to image"

// isTrustworthyCompletion reports whether a vertex's completion marker can be
// written as soon as it is seen. The daemon re-opens most completed vertices
// (a FROM vertex in particular), so writing DONE eagerly prints false
// terminations; these names are never re-opened.
func isTrustworthyCompletion(name string) bool {
	return name == exportingVertexName ||
		name == "copy /context /" ||
		strings.HasPrefix(name, "[internal] load metadata for ")
}

// writeTranscript renders one status message: each vertex together with its
// logs and finished layer statuses, then whatever logs and statuses remain
// for vertices not mentioned in this message.
func (d *Decoder) writeTranscript(status *controlapi.StatusResponse) error {
	logs := status.Logs
	statuses := status.Statuses

	for _, vertex := range status.Vertexes {
		var vertexLogs []*controlapi.VertexLog
		logs, vertexLogs = partitionLogs(logs, vertex.Digest)

		var finished []*controlapi.VertexStatus
		statuses, finished = partitionFinishedStatuses(statuses, vertex.Digest)

		if err := d.writeVertexUpdates(vertex, vertexLogs, finished); err != nil {
			return err
		}
	}

	for _, log := range logs {
		if err := d.writeLog(log); err != nil {
			return err
		}
	}

	for _, status := range statuses {
		if err := d.writeStatus(status); err != nil {
			return err
		}
	}

	return nil
}

func partitionLogs(logs []*controlapi.VertexLog, vertex digest.Digest) (remaining, matching []*controlapi.VertexLog) {
	for _, log := range logs {
		if log.Vertex == vertex {
			matching = append(matching, log)
		} else {
			remaining = append(remaining, log)
		}
	}

	return remaining, matching
}

func partitionFinishedStatuses(statuses []*controlapi.VertexStatus, vertex digest.Digest) (remaining, matching []*controlapi.VertexStatus) {
	for _, status := range statuses {
		if status.Vertex == vertex && status.Completed != nil {
			matching = append(matching, status)
		} else {
			remaining = append(remaining, status)
		}
	}

	return remaining, matching
}

func (d *Decoder) writeVertexUpdates(vertex *controlapi.Vertex, logs []*controlapi.VertexLog, finishedStatuses []*controlapi.VertexStatus) error {
	if vertex.Started != nil {
		if err := d.onVertexStarted(vertex); err != nil {
			return err
		}
	}

	if _, started := d.startedVertices[vertex.Digest]; !started && (len(logs) > 0 || len(finishedStatuses) > 0) {
		return protocolErrorf("daemon sent logs or statuses for vertex %s, which has never started", vertex.Digest)
	}

	for _, log := range logs {
		if err := d.writeLog(log); err != nil {
			return err
		}
	}

	for _, status := range finishedStatuses {
		if err := d.writeStatus(status); err != nil {
			return err
		}
	}

	if vertex.Completed != nil {
		return d.onVertexCompleted(vertex)
	}

	return nil
}

func (d *Decoder) onVertexStarted(vertex *controlapi.Vertex) error {
	if _, alreadyStarted := d.startedVertices[vertex.Digest]; alreadyStarted {
		// The daemon re-opened a vertex it told us had finished. It keeps its
		// original step number, and any deferred completion no longer holds.
		delete(d.pendingCompleted, vertex.Digest)

		return d.writeTransitionTo(vertex.Digest)
	}

	d.startedVertices[vertex.Digest] = &vertexInfo{
		started:    *vertex.Started,
		stepNumber: len(d.startedVertices) + 1,
		name:       vertex.Name,
		layers:     map[string]layerInfo{},
	}

	if err := d.writeTransitionTo(vertex.Digest); err != nil {
		return err
	}

	// This vertex starting means its inputs really are finished: flush their
	// deferred completions.
	for _, input := range vertex.Inputs {
		if pending, ok := d.pendingCompleted[input]; ok {
			if err := d.writePendingCompletion(pending); err != nil {
				return err
			}
		}
	}

	if vertex.Name == exportingVertexName {
		return d.flushAllPendingCompletions()
	}

	return nil
}

func (d *Decoder) onVertexCompleted(vertex *controlapi.Vertex) error {
	info, started := d.startedVertices[vertex.Digest]
	if !started {
		return protocolErrorf("daemon reported completion of vertex %s, which has never started", vertex.Digest)
	}

	if vertex.Error != "" {
		if err := d.writeTransitionTo(vertex.Digest); err != nil {
			return err
		}

		d.lastWritten = ""

		return d.writef("#%d ERROR: %s\n\n", info.stepNumber, vertex.Error)
	}

	if isTrustworthyCompletion(vertex.Name) {
		if err := d.writeTransitionTo(vertex.Digest); err != nil {
			return err
		}

		d.lastWritten = ""

		return d.writef("#%d %s\n\n", info.stepNumber, terminatorFor(vertex))
	}

	d.pendingCompleted[vertex.Digest] = vertex

	return nil
}

func terminatorFor(vertex *controlapi.Vertex) string {
	if vertex.Cached {
		return "CACHED"
	}

	return "DONE"
}

func (d *Decoder) writePendingCompletion(vertex *controlapi.Vertex) error {
	delete(d.pendingCompleted, vertex.Digest)

	info := d.startedVertices[vertex.Digest]
	d.lastWritten = ""

	return d.writef("#%d %s\n\n", info.stepNumber, terminatorFor(vertex))
}

func (d *Decoder) flushAllPendingCompletions() error {
	pending := make([]*controlapi.Vertex, 0, len(d.pendingCompleted))

	for _, vertex := range d.pendingCompleted {
		pending = append(pending, vertex)
	}

	sort.Slice(pending, func(i, j int) bool {
		return d.startedVertices[pending[i].Digest].stepNumber < d.startedVertices[pending[j].Digest].stepNumber
	})

	for _, vertex := range pending {
		if err := d.writePendingCompletion(vertex); err != nil {
			return err
		}
	}

	return nil
}

// writeTransitionTo makes the given vertex the one currently being written.
// If another vertex's output is open, a "#<n> ..." marker closes it first,
// then the new vertex's header line is written.
func (d *Decoder) writeTransitionTo(vertex digest.Digest) error {
	if d.lastWritten == vertex {
		return nil
	}

	if d.lastWritten != "" {
		previous := d.startedVertices[d.lastWritten]

		if err := d.writef("#%d ...\n\n", previous.stepNumber); err != nil {
			return err
		}
	}

	info := d.startedVertices[vertex]
	d.lastWritten = vertex

	return d.writef("#%d %s\n", info.stepNumber, info.name)
}

func (d *Decoder) writeLog(log *controlapi.VertexLog) error {
	info, started := d.startedVertices[log.Vertex]
	if !started {
		return protocolErrorf("daemon sent a log message for vertex %s, which has never started", log.Vertex)
	}

	if err := d.writeTransitionTo(log.Vertex); err != nil {
		return err
	}

	elapsed := formatElapsed(info.started, log.Timestamp)

	for _, line := range strings.Split(strings.TrimRight(string(log.Msg), "\r\n\t "), "\n") {
		if err := d.writef("#%d %s %s\n", info.stepNumber, elapsed, strings.TrimSuffix(line, "\r")); err != nil {
			return err
		}
	}

	return nil
}

// writeStatus renders a single layer status against the layer's current
// state. The state itself is only updated afterwards, when the progress
// aggregator runs.
func (d *Decoder) writeStatus(status *controlapi.VertexStatus) error {
	info, started := d.startedVertices[status.Vertex]
	if !started {
		return protocolErrorf("daemon sent a status for vertex %s, which has never started", status.Vertex)
	}

	layer := layerDigestForStatus(status)
	current, known := info.layers[layer]

	if status.Completed != nil {
		if known && status.Name == statusNameDone && current.operation >= LayerExtracting {
			// A late download completion for a layer that has moved on.
			return nil
		}

		if err := d.writeTransitionTo(status.Vertex); err != nil {
			return err
		}

		return d.writef("#%d %s: done\n", info.stepNumber, layer)
	}

	switch {
	case status.Name == statusNameDownloading && (!known || current.operation != LayerDownloading):
		if err := d.writeTransitionTo(status.Vertex); err != nil {
			return err
		}

		return d.writef("#%d %s: downloading %s\n", info.stepNumber, layer, humaniseBytes(status.Total))

	case status.Name == statusNameExtract && known && current.operation < LayerExtracting:
		if err := d.writeTransitionTo(status.Vertex); err != nil {
			return err
		}

		return d.writef("#%d %s: extracting\n", info.stepNumber, layer)
	}

	return nil
}

func (d *Decoder) writef(format string, a ...interface{}) error {
	_, err := fmt.Fprintf(d.out, format, a...)

	return errors.Wrap(err, "writing build output")
}

// formatElapsed renders the time since a vertex started as seconds and
// milliseconds, the way the Docker CLI timestamps build log lines. Clock skew
// between daemon timestamps can produce a negative delta; it is clamped to
// zero.
func formatElapsed(start, now time.Time) string {
	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	return fmt.Sprintf("%d.%03d", elapsed/time.Second, (elapsed%time.Second)/time.Millisecond)
}

var byteUnits = []string{"kB", "MB", "GB", "TB"}

// humaniseBytes renders a byte count the way the daemon does: whole bytes
// below 1 kB, otherwise one decimal place in decimal SI units.
func humaniseBytes(bytes int64) string {
	if bytes < 1000 {
		return fmt.Sprintf("%d B", bytes)
	}

	value := float64(bytes) / 1000
	unit := 0

	for value >= 1000 && unit < len(byteUnits)-1 {
		value /= 1000
		unit++
	}

	return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
}
