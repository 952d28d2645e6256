package fastdeploy

import (
	"errors"
	"fmt"
)

// ErrMissingAuthorization is returned when there is no service token for a
// request. No request is sent in that case.
var ErrMissingAuthorization = errors.New("fastdeploy: no service token for deployment")

// RemoteServiceError is a non-success response from fastdeploy.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *RemoteServiceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("fastdeploy: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("fastdeploy: %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}
