package buildkit

import (
	"sort"

	controlapi "github.com/moby/buildkit/api/services/control"
)

// updateProgress runs after the transcript for a status message has been
// written: it refreshes the active-vertex set and per-layer state, then emits
// a BuildProgress event if the set of active steps has changed.
func (d *Decoder) updateProgress(status *controlapi.StatusResponse) error {
	for _, vertex := range status.Vertexes {
		if vertex.Started != nil {
			d.activeVertices[vertex.Digest] = struct{}{}
		}

		if vertex.Completed != nil {
			delete(d.activeVertices, vertex.Digest)
		}
	}

	for _, vertexStatus := range status.Statuses {
		info, started := d.startedVertices[vertexStatus.Vertex]
		if !started {
			return protocolErrorf("daemon sent a status for vertex %s, which has never started", vertexStatus.Vertex)
		}

		info.applyStatus(vertexStatus)
	}

	steps := d.activeSteps()

	if len(steps) == 0 || activeStepsEqual(steps, d.lastProgress) {
		return nil
	}

	d.lastProgress = steps
	d.onEvent(BuildProgress{Steps: steps})

	return nil
}

func (d *Decoder) activeSteps() []ActiveImageBuildStep {
	active := make([]*vertexInfo, 0, len(d.activeVertices))

	for vertex := range d.activeVertices {
		active = append(active, d.startedVertices[vertex])
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].stepNumber < active[j].stepNumber
	})

	steps := make([]ActiveImageBuildStep, 0, len(active))

	for _, info := range active {
		steps = append(steps, info.activeStep())
	}

	return steps
}

func activeStepsEqual(a, b []ActiveImageBuildStep) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
