package buildkit

import (
	"strings"
	"time"

	controlapi "github.com/moby/buildkit/api/services/control"
)

// LayerOperation is the lifecycle of a single layer within a build step.
// Values are ordered. A late "done" status for a layer that is already
// extracting or beyond is dropped; "downloading" and "extract" statuses
// replace the layer's state as they arrive.
type LayerOperation int

const (
	LayerDownloading LayerOperation = iota
	LayerDownloadComplete
	LayerExtracting
	LayerPullComplete
)

func (o LayerOperation) String() string {
	switch o {
	case LayerDownloading:
		return "downloading"
	case LayerDownloadComplete:
		return "download complete"
	case LayerExtracting:
		return "extracting"
	case LayerPullComplete:
		return "pull complete"
	}

	return "unknown"
}

const extractingIDPrefix = "extracting "

// layerDigestForStatus returns the layer a status refers to. Extraction
// statuses carry the layer digest prefixed with "extracting".
func layerDigestForStatus(status *controlapi.VertexStatus) string {
	return strings.TrimPrefix(status.ID, extractingIDPrefix)
}

type layerInfo struct {
	operation      LayerOperation
	completedBytes int64
	totalBytes     int64
}

// vertexInfo is the decoder's record of a started vertex. The step number is
// assigned when the vertex is first seen starting and is never reassigned,
// even if the daemon re-opens the vertex later.
type vertexInfo struct {
	started    time.Time
	stepNumber int
	name       string
	layers     map[string]layerInfo
}

const (
	statusNameDownloading = "downloading"
	statusNameExtract     = "extract"
	statusNameDone        = "done"
)

// applyStatus folds a status update into the per-layer state. Statuses with
// unrecognised names are ignored, as are zero-total statuses other than
// extraction (extraction statuses never carry sizes).
func (v *vertexInfo) applyStatus(status *controlapi.VertexStatus) {
	if status.Total == 0 && status.Name != statusNameExtract {
		return
	}

	layer := layerDigestForStatus(status)
	previous, known := v.layers[layer]

	switch status.Name {
	case statusNameDownloading:
		v.layers[layer] = layerInfo{operation: LayerDownloading, completedBytes: status.Current, totalBytes: status.Total}

	case statusNameExtract:
		if status.Completed != nil {
			v.layers[layer] = layerInfo{operation: LayerPullComplete, completedBytes: previous.totalBytes, totalBytes: previous.totalBytes}
		} else {
			v.layers[layer] = layerInfo{operation: LayerExtracting, completedBytes: 0, totalBytes: previous.totalBytes}
		}

	case statusNameDone:
		switch {
		case !known:
			// A layer we never saw downloading: it came from the cache.
			v.layers[layer] = layerInfo{operation: LayerPullComplete, completedBytes: status.Current, totalBytes: status.Total}
		case previous.operation > LayerDownloadComplete:
			// Late download completion for a layer already extracting.
		default:
			v.layers[layer] = layerInfo{operation: LayerDownloadComplete, completedBytes: status.Current, totalBytes: status.Total}
		}
	}
}

// activeStep summarises this vertex for a progress event.
func (v *vertexInfo) activeStep() ActiveImageBuildStep {
	step := ActiveImageBuildStep{
		StepIndex: v.stepNumber - 1,
		Name:      v.name,
	}

	if len(v.layers) == 0 {
		return step
	}

	operation := v.reportedOperation()

	var completedBytes, totalBytes int64

	for _, layer := range v.layers {
		totalBytes += layer.totalBytes

		switch {
		case layer.operation == operation:
			completedBytes += layer.completedBytes
		case layer.operation > operation:
			completedBytes += layer.totalBytes
		}
	}

	step.Transferring = true
	step.Operation = operation
	step.CompletedBytes = completedBytes
	step.TotalBytes = totalBytes

	return step
}

// reportedOperation picks the operation to report progress against: the
// least-advanced operation that still has activity.
func (v *vertexInfo) reportedOperation() LayerOperation {
	var anyDownloading, anyExtracting bool

	allDownloadComplete := true
	allPullComplete := true

	for _, layer := range v.layers {
		switch layer.operation {
		case LayerDownloading:
			anyDownloading = true
		case LayerExtracting:
			anyExtracting = true
		}

		if layer.operation != LayerDownloadComplete {
			allDownloadComplete = false
		}

		if layer.operation != LayerPullComplete {
			allPullComplete = false
		}
	}

	switch {
	case anyDownloading:
		return LayerDownloading
	case anyExtracting:
		return LayerExtracting
	case allPullComplete:
		return LayerPullComplete
	case allDownloadComplete:
		return LayerDownloadComplete
	default:
		return LayerPullComplete
	}
}
