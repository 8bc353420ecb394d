package registry

import (
	"fmt"
	"strings"
)

// IdentityValidator checks that a caller-supplied identity is well formed and
// returns its canonical form. Authentication of the caller itself happens in
// the transport layer; the registry only ever compares identities for
// equality.
type IdentityValidator interface {
	Validate(raw string) (string, error)
}

const (
	DefaultMinIdentityLength = 3
	DefaultMaxIdentityLength = 64
)

// DefaultValidator accepts lower-case identities made of ASCII letters,
// digits, '.', '_' and '-'. Mixed-case input is rejected rather than folded
// so that two spellings can never name the same broker.
type DefaultValidator struct {
	MinLength int
	MaxLength int
}

func NewDefaultValidator(minLength, maxLength int) DefaultValidator {
	if minLength <= 0 {
		minLength = DefaultMinIdentityLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxIdentityLength
	}
	return DefaultValidator{MinLength: minLength, MaxLength: maxLength}
}

func (v DefaultValidator) Validate(raw string) (string, error) {
	minLength, maxLength := v.MinLength, v.MaxLength
	if minLength <= 0 {
		minLength = DefaultMinIdentityLength
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxIdentityLength
	}

	if len(raw) < minLength {
		return "", fmt.Errorf("%w: %q is shorter than %d characters", ErrInvalidIdentity, raw, minLength)
	}
	if len(raw) > maxLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidIdentity, maxLength)
	}
	if strings.ToLower(raw) != raw {
		return "", fmt.Errorf("%w: %q is not normalized", ErrInvalidIdentity, raw)
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
		default:
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidIdentity, raw, c)
		}
	}

	return raw, nil
}
