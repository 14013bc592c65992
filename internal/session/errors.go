package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionTimeout is returned if the credential acquirer did not finish within the configured timeout
	ErrSessionTimeout = errors.New("session acquisition timed out")

	// ErrSessionFormat is returned if the credential acquirer succeeded but its output contains no session token
	ErrSessionFormat = errors.New("credential acquirer output contains no session token")
)

// AcquisitionError represents a failed credential acquirer invocation (spawn error or non-zero exit)
type AcquisitionError struct {
	Output string
	Cause  error
}

func (err *AcquisitionError) Error() string {
	if err.Cause == nil {
		return "session acquisition failed"
	}
	return fmt.Sprintf("session acquisition failed: %v", err.Cause)
}

func (err *AcquisitionError) Unwrap() error {
	return err.Cause
}
