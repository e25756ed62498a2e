package orchestrator

import (
	"errors"
	"time"
)

// slotBusyError reports that another admission held the specialist slot for
// longer than the configured wait.
type slotBusyError struct {
	holder string
	wait   time.Duration
}

func (e slotBusyError) Error() string {
	if e.holder != "" {
		return "specialist slot busy (held by " + e.holder + ") after " + e.wait.String()
	}
	return "specialist slot busy after " + e.wait.String()
}

// ErrSlotBusy constructs a slotBusyError.
func ErrSlotBusy(holder string, wait time.Duration) error {
	return slotBusyError{holder: holder, wait: wait}
}

// IsSlotBusy reports whether err indicates the specialist slot was not
// acquired in time.
func IsSlotBusy(err error) bool {
	var e slotBusyError
	return errors.As(err, &e)
}

// registryError wraps a failure to read the model registry.
type registryError struct{ err error }

func (e registryError) Error() string { return "load registry: " + e.err.Error() }
func (e registryError) Unwrap() error { return e.err }

// IsRegistryUnavailable reports whether err came from reading the registry.
func IsRegistryUnavailable(err error) bool {
	var e registryError
	return errors.As(err, &e)
}
