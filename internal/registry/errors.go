package registry

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotBroker          = errors.New("this address is not a broker")
	ErrAlreadyBroker      = errors.New("this address is already a broker")
	ErrInvalidIdentity    = errors.New("invalid identity")
	ErrNotFound           = errors.New("not found")
	ErrStorageFailure     = errors.New("storage failure")
	ErrAlreadyInitialized = errors.New("registry already initialized")
	ErrInvalidOffer       = errors.New("invalid offer")
)

var domainErrors = []error{
	ErrUnauthorized,
	ErrNotBroker,
	ErrAlreadyBroker,
	ErrInvalidIdentity,
	ErrNotFound,
	ErrStorageFailure,
	ErrAlreadyInitialized,
	ErrInvalidOffer,
}

// storageErr tags any error that is not already part of the registry's
// taxonomy as a storage failure.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrStorageFailure, op, err)
}
