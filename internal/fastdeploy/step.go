package fastdeploy

import (
	"sort"
	"time"
)

const StatePending = "pending"

// Step is one unit of deployment progress as reported by fastdeploy.
type Step struct {
	ID       *int64     `json:"id"`
	Name     string     `json:"name"`
	Started  *time.Time `json:"started"`
	Finished *time.Time `json:"finished"`
	State    string     `json:"state"`
	Message  string     `json:"message"`
}

var (
	// StepStart is shown before any reported step once a deployment has steps.
	StepStart = Step{ID: StepID(0), Name: "Starting deployment...", State: StatePending}

	// StepEnd is shown after all reported steps once a deployment has finished.
	StepEnd = Step{ID: StepID(-1), Name: "Deployment is done!", State: StatePending}
)

// NewStep returns a pending step with the given id and name.
func NewStep(id int64, name string) Step {
	return Step{ID: StepID(id), Name: name, State: StatePending}
}

// StepID returns a pointer to id, for building steps by hand.
func StepID(id int64) *int64 {
	return &id
}

func (s Step) copy() Step {
	if s.ID != nil {
		s.ID = StepID(*s.ID)
	}
	return s
}

// SortSteps orders steps newest first by start time. Steps without a start
// time have not been picked up yet and sort before all started steps.
func SortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		return startedAfter(steps[i], steps[j])
	})
}

func startedAfter(a, b Step) bool {
	switch {
	case a.Started == nil:
		return b.Started != nil
	case b.Started == nil:
		return false
	default:
		return a.Started.After(*b.Started)
	}
}
