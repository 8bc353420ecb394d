package registry

import (
	"slices"

	"realestate/internal/storage"
)

// BrokerRegistry owns the ordered set of approved brokers. Only the
// administrator, as decided by AdminRegistry, may add to it.
type BrokerRegistry struct {
	admin     *AdminRegistry
	validator IdentityValidator
}

func NewBrokerRegistry(admin *AdminRegistry, validator IdentityValidator) *BrokerRegistry {
	return &BrokerRegistry{admin: admin, validator: validator}
}

// Initialize writes the empty set.
func (b *BrokerRegistry) Initialize(tx *storage.Txn) error {
	return save(tx, brokersKey, []string{})
}

// Add checks, in order, admin authorization, identity syntax and
// uniqueness; the first failure wins and nothing is written.
func (b *BrokerRegistry) Add(tx *storage.Txn, caller, candidate string) (string, Event, error) {
	if err := b.admin.RequireAdmin(tx, caller); err != nil {
		return "", Event{}, err
	}

	validated, err := b.validator.Validate(candidate)
	if err != nil {
		return "", Event{}, err
	}

	brokers, err := b.List(tx)
	if err != nil {
		return "", Event{}, err
	}
	if slices.Contains(brokers, validated) {
		return "", Event{}, ErrAlreadyBroker
	}

	brokers = append(brokers, validated)
	if err := save(tx, brokersKey, brokers); err != nil {
		return "", Event{}, err
	}

	return validated, newEvent("make_broker", "new_broker", validated), nil
}

func (b *BrokerRegistry) IsBroker(tx *storage.Txn, identity string) (bool, error) {
	brokers, err := b.List(tx)
	if err != nil {
		return false, err
	}
	return slices.Contains(brokers, identity), nil
}

// List returns the brokers in insertion order.
func (b *BrokerRegistry) List(tx *storage.Txn) ([]string, error) {
	var brokers []string
	if _, err := load(tx, brokersKey, &brokers); err != nil {
		return nil, err
	}
	return brokers, nil
}
