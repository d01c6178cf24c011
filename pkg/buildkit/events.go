package buildkit

// BuildEvent is a structured notification emitted by the decoder while it
// consumes a daemon build response. Events are delivered synchronously on the
// decoding goroutine; callbacks are expected to return quickly.
type BuildEvent interface {
	buildEvent()
}

// BuildError is a build failure reported by the daemon. The decoder keeps
// decoding after delivering it so that any remaining output is still written.
type BuildError struct {
	Message string
}

// BuildComplete carries the identity of the built image.
type BuildComplete struct {
	ImageID string
}

// BuildProgress is a snapshot of the steps currently running, ordered by step
// number. It is emitted at most once per status message from the daemon, and
// only when the set of active steps has changed.
type BuildProgress struct {
	Steps []ActiveImageBuildStep
}

func (BuildError) buildEvent()    {}
func (BuildComplete) buildEvent() {}
func (BuildProgress) buildEvent() {}

// EventCallback receives build events as they are observed on the wire.
type EventCallback func(event BuildEvent)

// ActiveImageBuildStep describes one currently-running build step. If the
// step has reported layer activity, Transferring is true and Operation,
// CompletedBytes and TotalBytes describe the least-advanced operation still
// in progress across its layers.
type ActiveImageBuildStep struct {
	StepIndex      int
	Name           string
	Transferring   bool
	Operation      LayerOperation
	CompletedBytes int64
	TotalBytes     int64
}
