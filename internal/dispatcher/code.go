package dispatcher

import (
	"errors"
	"fmt"

	"realestate/internal/registry"
)

var ErrInvalidRequest = errors.New("invalid request")

type Code uint32

const (
	CodeOK Code = iota
	CodeUnauthorized
	CodeInvalidIdentity
	CodeAlreadyBroker
	CodeNotBroker
	CodeNotFound
	CodeInvalidRequest
	CodeStorageFailure
	CodeAlreadyInitialized
	CodeInvalidOffer
)

var codeNames = map[Code]string{
	CodeOK:                 "OK",
	CodeUnauthorized:       "Unauthorized",
	CodeInvalidIdentity:    "InvalidIdentity",
	CodeAlreadyBroker:      "AlreadyBroker",
	CodeNotBroker:          "NotBroker",
	CodeNotFound:           "NotFound",
	CodeInvalidRequest:     "InvalidRequest",
	CodeStorageFailure:     "StorageFailure",
	CodeAlreadyInitialized: "AlreadyInitialized",
	CodeInvalidOffer:       "InvalidOffer",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

var codeErrors = []struct {
	err  error
	code Code
}{
	{registry.ErrUnauthorized, CodeUnauthorized},
	{registry.ErrInvalidIdentity, CodeInvalidIdentity},
	{registry.ErrAlreadyBroker, CodeAlreadyBroker},
	{registry.ErrNotBroker, CodeNotBroker},
	{registry.ErrNotFound, CodeNotFound},
	{registry.ErrInvalidOffer, CodeInvalidOffer},
	{ErrInvalidRequest, CodeInvalidRequest},
	{registry.ErrAlreadyInitialized, CodeAlreadyInitialized},
	{registry.ErrStorageFailure, CodeStorageFailure},
}

// CodeOf classifies err by the first match in codeErrors, so an invalid offer
// wrapped in an invalid request reports CodeInvalidOffer. Errors outside the
// registry taxonomy are storage failures.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeStorageFailure
}

// Sentinel is the inverse of CodeOf.
func (c Code) Sentinel() error {
	for _, ce := range codeErrors {
		if ce.code == c {
			return ce.err
		}
	}
	return registry.ErrStorageFailure
}
