package tupledb

import "fmt"

// State is the lifecycle state of a store or set.
//
//	Running → Draining → Stopped
//	Running → Killed (also Draining → Killed)
type State int32

const (
	Running State = iota
	Draining
	Stopped
	Killed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	case Killed:
		return "killed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
