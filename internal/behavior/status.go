package behavior

import (
	bt "github.com/joeycumines/go-behaviortree"
)

// Status is the outcome of ticking a node. It shares its representation with
// go-behaviortree, so statuses pass between the two runtimes unchanged.
type Status = bt.Status

const (
	// Invalid is the zero Status, reported by nodes that were never ticked.
	Invalid Status = 0
	// Running indicates the node needs to be ticked again next frame.
	Running Status = bt.Running
	// Success is a terminal status.
	Success Status = bt.Success
	// Failure is a terminal status.
	Failure Status = bt.Failure
)

// IsTerminal reports whether status is [Success] or [Failure].
func IsTerminal(status Status) bool {
	return status == Success || status == Failure
}

// StatusString returns a lower-case name for status, as used in logs and
// definition attributes.
func StatusString(status Status) string {
	switch status {
	case Running:
		return "running"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of [StatusString], accepting only the three valid
// tick results.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "running", "Running":
		return Running, true
	case "success", "Success":
		return Success, true
	case "failure", "Failure":
		return Failure, true
	default:
		return Invalid, false
	}
}
