package fastdeploy

import (
	"time"
)

// Deployment is a snapshot of a deployment as reported by fastdeploy at one
// point in time. Snapshots are replaced by newer ones, never modified.
type Deployment struct {
	ID        *int64         `json:"id"`
	Steps     []Step         `json:"steps"`
	ServiceID int            `json:"service_id"`
	Origin    string         `json:"origin"`
	User      string         `json:"user"`
	Started   *time.Time     `json:"started"`
	Finished  *time.Time     `json:"finished"`
	Context   map[string]any `json:"context"`

	// NoStepsYet marks a deployment that was just started and has not been
	// fetched from fastdeploy yet. It is never sent by fastdeploy itself.
	NoStepsYet bool `json:"no_steps_yet"`
}

// Placeholder returns the snapshot for a deployment fastdeploy has
// just accepted.
func Placeholder(id int64) *Deployment {
	return &Deployment{ID: &id, NoStepsYet: true}
}

func (d *Deployment) HasFinished() bool {
	return d.Finished != nil
}

// ExposedSteps returns the steps a user is allowed to see for this snapshot,
// bookended by StepStart and, once finished, StepEnd.
func (d *Deployment) ExposedSteps() []Step {
	if d == nil || d.NoStepsYet {
		return []Step{}
	}

	steps := make([]Step, 0, len(d.Steps)+2)
	steps = append(steps, StepStart.copy())
	for _, s := range d.Steps {
		steps = append(steps, s.copy())
	}
	if d.HasFinished() {
		steps = append(steps, StepEnd.copy())
	}
	return steps
}

// NewSteps returns the exposed steps of d whose ids are not among the exposed
// steps of seen. Steps are identified by id only, so changes to the content
// of a step that has already been seen are not reported.
func (d *Deployment) NewSteps(seen *Deployment) []Step {
	ids := make(map[int64]struct{})
	seenWithoutID := false
	for _, s := range seen.ExposedSteps() {
		if s.ID == nil {
			seenWithoutID = true
			continue
		}
		ids[*s.ID] = struct{}{}
	}

	ret := make([]Step, 0)
	for _, s := range d.ExposedSteps() {
		if s.ID == nil {
			if !seenWithoutID {
				ret = append(ret, s)
			}
			continue
		}
		if _, ok := ids[*s.ID]; !ok {
			ret = append(ret, s)
		}
	}
	return ret
}

// RemoteID returns the id fastdeploy assigned, or 0 if there is none yet.
func (d *Deployment) RemoteID() int64 {
	if d == nil || d.ID == nil {
		return 0
	}
	return *d.ID
}
