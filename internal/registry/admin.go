package registry

import (
	"fmt"
	"log/slog"

	"realestate/internal/storage"
)

// AdminRegistry owns the administrator slot.
type AdminRegistry struct {
	validator  IdentityValidator
	allowClear bool
}

func NewAdminRegistry(validator IdentityValidator, allowClear bool) *AdminRegistry {
	return &AdminRegistry{validator: validator, allowClear: allowClear}
}

// Initialize stores caller as the first administrator. It runs once, at
// bootstrap; the slot existing at all (even cleared) makes it fail.
func (a *AdminRegistry) Initialize(tx *storage.Txn, caller string) error {
	if tx.Has(adminKey) {
		return ErrAlreadyInitialized
	}
	if caller == "" {
		return fmt.Errorf("%w: empty administrator", ErrInvalidIdentity)
	}
	admin, err := a.validator.Validate(caller)
	if err != nil {
		return err
	}
	return save(tx, adminKey, adminSlot{Admin: &admin})
}

// Current returns the administrator, or nil when the slot is unset or cleared.
func (a *AdminRegistry) Current(tx *storage.Txn) (*string, error) {
	var slot adminSlot
	if _, err := load(tx, adminKey, &slot); err != nil {
		return nil, err
	}
	return slot.Admin, nil
}

// RequireAdmin succeeds only when the slot holds exactly caller.
func (a *AdminRegistry) RequireAdmin(tx *storage.Txn, caller string) error {
	current, err := a.Current(tx)
	if err != nil {
		return err
	}
	if current == nil || caller == "" || *current != caller {
		return ErrUnauthorized
	}
	return nil
}

// Rotate hands the slot to newAdmin. Passing nil clears the slot, after which
// no caller can pass RequireAdmin again and broker membership is frozen until
// the store is edited directly. Clearing is refused when the registry was
// built with allowClear=false.
func (a *AdminRegistry) Rotate(tx *storage.Txn, caller string, newAdmin *string) (Event, error) {
	if err := a.RequireAdmin(tx, caller); err != nil {
		return Event{}, err
	}

	if newAdmin == nil {
		if !a.allowClear {
			return Event{}, fmt.Errorf("%w: clearing the administrator is disabled", ErrInvalidIdentity)
		}
		if err := save(tx, adminKey, adminSlot{}); err != nil {
			return Event{}, err
		}
		slog.Warn("administrator cleared, admin-gated operations are now locked", "previous", caller)
		return newEvent("update_admin", "admin", "None", "previous", caller), nil
	}

	validated, err := a.validator.Validate(*newAdmin)
	if err != nil {
		return Event{}, err
	}
	if err := save(tx, adminKey, adminSlot{Admin: &validated}); err != nil {
		return Event{}, err
	}
	return newEvent("update_admin", "admin", validated, "previous", caller), nil
}
