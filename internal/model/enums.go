package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Backend is the site technology a domain is deployed with.
type Backend string

const (
	BackendCast      Backend = "cast"
	BackendWordpress Backend = "wordpress"
)

var AllBackend = []Backend{
	BackendCast,
	BackendWordpress,
}

func (e Backend) IsValid() bool {
	switch e {
	case BackendCast, BackendWordpress:
		return true
	}
	return false
}

func (e Backend) String() string {
	return string(e)
}

func (e *Backend) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("backend must be a string")
	}

	*e = Backend(strings.ToLower(s))
	if !e.IsValid() {
		return fmt.Errorf("%s is not a valid Backend", s)
	}
	return nil
}

// Target tells whether a deployment provisions or tears down a site.
type Target string

const (
	TargetDeploy Target = "deploy"
	TargetRemove Target = "remove"
)

var AllTarget = []Target{
	TargetDeploy,
	TargetRemove,
}

func (e Target) IsValid() bool {
	switch e {
	case TargetDeploy, TargetRemove:
		return true
	}
	return false
}

func (e Target) String() string {
	return string(e)
}

func (e *Target) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("target must be a string")
	}

	*e = Target(strings.ToLower(s))
	if !e.IsValid() {
		return fmt.Errorf("%s is not a valid Target", s)
	}
	return nil
}
