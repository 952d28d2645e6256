package model

import (
	"time"

	"github.com/castregistry/cast-registry/internal/fastdeploy"
)

// Deployment is the registry's record of a deployment started for a domain.
type Deployment struct {
	ID       int64  `json:"id"`
	DomainID int64  `json:"domain_id"`
	Target   Target `json:"target"`
	RemoteID int64  `json:"remote_id"`
	// Remote is the last snapshot received from fastdeploy
	Remote *fastdeploy.Deployment `json:"remote"`
	// ProcessedSteps holds every step delivered to a user, in delivery order
	ProcessedSteps []fastdeploy.Step `json:"processed_steps"`
	Finished       bool              `json:"finished"`
	Created        time.Time         `json:"created"`
}
