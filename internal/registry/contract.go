// Package registry holds the access-control and state-transition rules of the
// property registry: a single administrator, the brokers it approves, and the
// append-only ledger of offers those brokers create.
//
// Each Contract operation runs in exactly one storage transaction. Any error
// returned by an operation means nothing was written.
package registry

import (
	"fmt"
	"log/slog"
	"strconv"

	"realestate/internal/metrics"
	"realestate/internal/storage"
)

// Store is the transactional key-value store the registry persists into.
type Store interface {
	View(fn func(tx *storage.Txn) error) error
	Update(fn func(tx *storage.Txn) error) error
}

type Options struct {
	Validator       IdentityValidator
	AllowAdminClear bool
	ContractName    string
	ContractVersion string
}

type Contract struct {
	store   Store
	info    ContractInfo
	admin   *AdminRegistry
	brokers *BrokerRegistry
	ledger  *OfferLedger
}

func New(store Store, opts Options) *Contract {
	validator := opts.Validator
	if validator == nil {
		validator = NewDefaultValidator(0, 0)
	}

	admin := NewAdminRegistry(validator, opts.AllowAdminClear)
	brokers := NewBrokerRegistry(admin, validator)

	return &Contract{
		store:   store,
		info:    ContractInfo{Name: opts.ContractName, Version: opts.ContractVersion},
		admin:   admin,
		brokers: brokers,
		ledger:  NewOfferLedger(brokers),
	}
}

// Instantiate bootstraps an empty registry with caller as administrator. The
// seed is echoed in the event and starts the heartbeat counter; the offer
// counter always starts at zero.
func (c *Contract) Instantiate(caller string, seed int64) ([]Event, error) {
	err := c.store.Update(func(tx *storage.Txn) error {
		if tx.Has(stateKey) {
			return ErrAlreadyInitialized
		}
		if err := c.admin.Initialize(tx, caller); err != nil {
			return err
		}
		if err := c.brokers.Initialize(tx); err != nil {
			return err
		}
		if err := save(tx, contractInfoKey, c.info); err != nil {
			return err
		}
		return save(tx, stateKey, State{Count: 0, Heartbeats: seed})
	})
	if err != nil {
		return nil, storageErr("instantiate", err)
	}

	slog.Info("registry instantiated", "admin", caller, "contract", c.info.Name, "version", c.info.Version)
	metrics.BrokersTotal.Set(0)
	metrics.OffersTotal.Set(0)

	return []Event{newEvent("instantiate",
		"owner", caller,
		"count", strconv.FormatInt(seed, 10),
	)}, nil
}

// Increment bumps the heartbeat counter. It is used as a liveness check and
// requires no authorization.
func (c *Contract) Increment() ([]Event, error) {
	var heartbeats int64
	err := c.store.Update(func(tx *storage.Txn) error {
		st, err := loadState(tx)
		if err != nil {
			return err
		}
		st.Heartbeats++
		heartbeats = st.Heartbeats
		return save(tx, stateKey, st)
	})
	if err != nil {
		return nil, storageErr("increment", err)
	}

	return []Event{newEvent("try_increment", "heartbeats", strconv.FormatInt(heartbeats, 10))}, nil
}

func (c *Contract) AddBroker(caller, candidate string) (string, []Event, error) {
	var (
		broker string
		event  Event
		total  int
	)
	err := c.store.Update(func(tx *storage.Txn) error {
		var err error
		broker, event, err = c.brokers.Add(tx, caller, candidate)
		if err != nil {
			return err
		}
		list, err := c.brokers.List(tx)
		total = len(list)
		return err
	})
	if err != nil {
		slog.Debug("add broker rejected", "caller", caller, "candidate", candidate, "error", err)
		return "", nil, storageErr("add broker", err)
	}

	slog.Info("broker added", "broker", broker, "by", caller)
	metrics.BrokersTotal.Set(float64(total))
	return broker, []Event{event}, nil
}

func (c *Contract) CreateOffer(caller string, offer Offer) (uint64, []Event, error) {
	var (
		id    uint64
		event Event
	)
	err := c.store.Update(func(tx *storage.Txn) error {
		var err error
		id, event, err = c.ledger.Create(tx, caller, offer)
		return err
	})
	if err != nil {
		slog.Debug("create offer rejected", "caller", caller, "error", err)
		return 0, nil, storageErr("create offer", err)
	}

	slog.Info("offer created", "offer_id", id, "broker", caller, "region", offer.Region, "type", offer.PropertyType)
	metrics.OffersTotal.Set(float64(id))
	return id, []Event{event}, nil
}

// RotateAdmin replaces the administrator; nil clears it (see AdminRegistry.Rotate).
func (c *Contract) RotateAdmin(caller string, newAdmin *string) ([]Event, error) {
	var event Event
	err := c.store.Update(func(tx *storage.Txn) error {
		var err error
		event, err = c.admin.Rotate(tx, caller, newAdmin)
		return err
	})
	if err != nil {
		return nil, storageErr("rotate admin", err)
	}

	slog.Info("administrator rotated", "by", caller, "new_admin", derefOr(newAdmin, "None"))
	return []Event{event}, nil
}

func (c *Contract) GetOffer(id uint64) (Offer, error) {
	var offer Offer
	err := c.store.View(func(tx *storage.Txn) error {
		var err error
		offer, err = c.ledger.Get(tx, id)
		return err
	})
	if err != nil {
		return Offer{}, storageErr("get offer", err)
	}
	return offer, nil
}

func (c *Contract) RequireAdmin(caller string) error {
	return c.store.View(func(tx *storage.Txn) error {
		return c.admin.RequireAdmin(tx, caller)
	})
}

func (c *Contract) IsBroker(identity string) (bool, error) {
	var ok bool
	err := c.store.View(func(tx *storage.Txn) error {
		var err error
		ok, err = c.brokers.IsBroker(tx, identity)
		return err
	})
	return ok, storageErr("is broker", err)
}

func (c *Contract) Admin() (*string, error) {
	var admin *string
	err := c.store.View(func(tx *storage.Txn) error {
		var err error
		admin, err = c.admin.Current(tx)
		return err
	})
	return admin, storageErr("admin", err)
}

func (c *Contract) Brokers() ([]string, error) {
	var brokers []string
	err := c.store.View(func(tx *storage.Txn) error {
		var err error
		brokers, err = c.brokers.List(tx)
		return err
	})
	return brokers, storageErr("brokers", err)
}

func (c *Contract) OfferCount() (uint64, error) {
	var n uint64
	err := c.store.View(func(tx *storage.Txn) error {
		var err error
		n, err = c.ledger.Count(tx)
		return err
	})
	return n, storageErr("offer count", err)
}

func (c *Contract) State() (State, error) {
	var st State
	err := c.store.View(func(tx *storage.Txn) error {
		var err error
		st, err = loadState(tx)
		return err
	})
	return st, storageErr("state", err)
}

// Initialized reports whether Instantiate has run against this store.
func (c *Contract) Initialized() (bool, error) {
	var ok bool
	err := c.store.View(func(tx *storage.Txn) error {
		ok = tx.Has(stateKey)
		return nil
	})
	return ok, err
}

// CheckInvariants verifies the persisted state: the offer entries are exactly
// ids 1..counter, every entry decodes to a valid offer, and the broker set
// has no duplicates. An uninitialized store is trivially consistent.
func (c *Contract) CheckInvariants() error {
	err := c.store.View(func(tx *storage.Txn) error {
		if !tx.Has(stateKey) {
			return nil
		}

		st, err := loadState(tx)
		if err != nil {
			return err
		}

		var (
			expected uint64 = 1
			scanErr  error
		)
		err = tx.Scan(propertiesPrefix, func(key string, _ []byte) bool {
			id, err := parseOfferKey(key)
			if err != nil {
				scanErr = err
				return false
			}
			if id != expected {
				scanErr = fmt.Errorf("expected offer %d, found %d", expected, id)
				return false
			}
			offer, err := c.ledger.Get(tx, id)
			if err != nil {
				scanErr = err
				return false
			}
			if err := offer.Validate(); err != nil {
				scanErr = fmt.Errorf("offer %d: %v", id, err)
				return false
			}
			expected++
			return true
		})
		if err != nil {
			return err
		}
		if scanErr != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, scanErr)
		}
		if found := expected - 1; found != st.Count {
			return fmt.Errorf("%w: counter is %d but %d offers are stored", ErrStorageFailure, st.Count, found)
		}

		brokers, err := c.brokers.List(tx)
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(brokers))
		for _, b := range brokers {
			if _, dup := seen[b]; dup {
				return fmt.Errorf("%w: broker %q listed twice", ErrStorageFailure, b)
			}
			seen[b] = struct{}{}
		}

		metrics.BrokersTotal.Set(float64(len(brokers)))
		metrics.OffersTotal.Set(float64(st.Count))
		return nil
	})
	return storageErr("check invariants", err)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
