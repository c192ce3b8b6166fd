package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals logical absence. It is never counted as a fault.
	ErrNotFound = errors.New("not found")

	// ErrNullArgument is returned when a required key or name is empty.
	ErrNullArgument = errors.New("null or empty argument")

	// ErrConfiguration marks a fatal misconfiguration, e.g. a missing endpoint.
	ErrConfiguration = errors.New("invalid configuration")

	ErrConfigSource = errors.New("config source read/write error")
	ErrStoreAccess  = errors.New("data store read/write error")
	ErrInvalidEntry = errors.New("invalid config entry")
)

func Err(typedError error, innerErr error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(typedError, innerErr)
	} else {
		return errors.Join(typedError, innerErr, fmt.Errorf(msgTemplate, args...))
	}
}

// NullArgument returns an ErrNullArgument naming the offending parameter.
func NullArgument(param string) error {
	return fmt.Errorf("%w: %s", ErrNullArgument, param)
}
