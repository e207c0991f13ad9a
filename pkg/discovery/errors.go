package discovery

import (
	"errors"
	"fmt"
)

// ErrClusterCommunication is matched by every error returned from a platform
// discovery query. Use errors.Is to test for it.
var ErrClusterCommunication = errors.New("cluster communication failure")

// ClusterCommunicationError is returned when a discovery request to the API server
// fails. Network, authorization and decoding failures all collapse into this
// error; the wrapped error carries the detail.
type ClusterCommunicationError struct {
	// Op names the discovery request that failed, e.g. "list API groups".
	Op  string
	Err error
}

func (e *ClusterCommunicationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrClusterCommunication, e.Op, e.Err)
}

func (e *ClusterCommunicationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrClusterCommunication.
func (e *ClusterCommunicationError) Is(target error) bool {
	return target == ErrClusterCommunication
}

func clusterError(op string, err error) error {
	return &ClusterCommunicationError{Op: op, Err: err}
}
