package fastdeploy

import (
	"context"
	"sync"
	"time"
)

var _ Client = &TestClient{}

// TestClient replays a fixed sequence of snapshots instead of talking to
// fastdeploy. Every started deployment gets its own remote id and its own
// position in the sequence.
type TestClient struct {
	lock    sync.Mutex
	start   *Deployment
	fetches []*Deployment
	lastID  int64
	cursors map[int64]int
	started int
	fetched int
}

// NewTestClient returns a client that answers StartDeployment with start and
// every FetchDeployment with the next entry of fetches for that deployment.
// Once the sequence is exhausted the last entry is repeated. The first
// started deployment gets the id of start, later ones count up from there.
func NewTestClient(start *Deployment, fetches ...*Deployment) *TestClient {
	return &TestClient{
		start:   start,
		fetches: fetches,
		cursors: map[int64]int{},
	}
}

// NewDefaultTestClient replays DefaultTestSnapshots.
func NewDefaultTestClient() *TestClient {
	snapshots := DefaultTestSnapshots(time.Now().UTC())
	return NewTestClient(snapshots[0], snapshots[1:]...)
}

// DefaultTestSnapshots is a short deployment: started, two steps, finished.
// Like fastdeploy, every snapshot carries all steps reported so far.
func DefaultTestSnapshots(now time.Time) []*Deployment {
	ret := []*Deployment{Placeholder(1)}
	steps := []Step{}
	for i, name := range []string{"first step", "second step"} {
		started := now.Add(time.Duration(i) * time.Second)
		step := NewStep(int64(i+1), name)
		step.Started = &started
		steps = append([]Step{step}, steps...)
		ret = append(ret, &Deployment{
			ID:        StepID(1),
			ServiceID: 1,
			Origin:    "test",
			User:      "foo",
			Steps:     append([]Step(nil), steps...),
		})
	}
	finished := now.Add(time.Minute)
	ret = append(ret, &Deployment{
		ID:        StepID(1),
		ServiceID: 1,
		Origin:    "test",
		User:      "foo",
		Steps:     append([]Step(nil), steps...),
		Finished:  &finished,
	})
	return ret
}

func (c *TestClient) StartDeployment(_ context.Context, _ DeploymentContext, token string) (*Deployment, error) {
	if token == "" {
		return nil, ErrMissingAuthorization
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.started++
	if c.started == 1 {
		c.lastID = c.start.RemoteID()
	} else {
		c.lastID++
	}
	c.cursors[c.lastID] = 0
	return replay(c.start, c.lastID), nil
}

func (c *TestClient) FetchDeployment(_ context.Context, id int64, token string) (*Deployment, error) {
	if token == "" {
		return nil, ErrMissingAuthorization
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.fetched++
	if len(c.fetches) == 0 {
		return replay(c.start, id), nil
	}

	next := c.cursors[id]
	d := replay(c.fetches[next], id)
	if next < len(c.fetches)-1 {
		c.cursors[id] = next + 1
	}
	return d, nil
}

// Calls returns how often each operation has been called.
func (c *TestClient) Calls() (started, fetched int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.started, c.fetched
}

// replay returns a copy of d for the deployment with the given id, steps
// sorted the way fastdeploy sends them.
func replay(d *Deployment, id int64) *Deployment {
	ret := *d
	ret.ID = StepID(id)
	if d.Steps != nil {
		ret.Steps = make([]Step, 0, len(d.Steps))
		for _, s := range d.Steps {
			ret.Steps = append(ret.Steps, s.copy())
		}
		SortSteps(ret.Steps)
	}
	return &ret
}
