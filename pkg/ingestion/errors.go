package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestionFailed is matched by every dispatch failure.
	ErrIngestionFailed  = errors.New("ingestion failed")
	ErrInvalidEcosystem = errors.New("ecosystem is required")
	ErrOutcomeNotFound  = errors.New("ingestion outcome not found")
)

// DispatchError reports a request that could not be sent.
type DispatchError struct {
	Ecosystem string
	Payload   Payload
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: ecosystem %s: %v", ErrIngestionFailed, e.Ecosystem, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func (e *DispatchError) Is(target error) bool {
	return target == ErrIngestionFailed
}
