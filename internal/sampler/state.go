package sampler

// State is the loop's position within a cycle.
type State int32

const (
	Idle State = iota
	Sampling
	Calibrating
	Persisting
	Rendering
	Sleeping
	Stopping
	Stopped
)

var stateNames = [...]string{
	Idle:        "idle",
	Sampling:    "sampling",
	Calibrating: "calibrating",
	Persisting:  "persisting",
	Rendering:   "rendering",
	Sleeping:    "sleeping",
	Stopping:    "stopping",
	Stopped:     "stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
