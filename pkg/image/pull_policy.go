package image

import (
	"github.com/pkg/errors"
)

// PullPolicy defines when an image should be pulled from the registry.
type PullPolicy int

const (
	// PullAlways pulls the image even when a copy exists in the daemon.
	PullAlways PullPolicy = iota
	// PullNever uses the daemon's copy and fails when there is none.
	PullNever
	// PullIfNotPresent pulls only when the daemon has no copy of the image.
	PullIfNotPresent
)

// ParsePullPolicy from a string
func ParsePullPolicy(policy string) (PullPolicy, error) {
	switch policy {
	case "always", "":
		return PullAlways, nil
	case "never":
		return PullNever, nil
	case "if-not-present":
		return PullIfNotPresent, nil
	}

	return PullAlways, errors.Errorf("invalid pull policy %s", policy)
}

func (p PullPolicy) String() string {
	switch p {
	case PullAlways:
		return "always"
	case PullNever:
		return "never"
	case PullIfNotPresent:
		return "if-not-present"
	}

	return ""
}
