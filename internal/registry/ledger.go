package registry

import (
	"fmt"
	"math"
	"strconv"

	"realestate/internal/storage"
)

// OfferLedger owns the offer counter and the id -> Offer map and keeps the
// two consistent: every entry corresponds to exactly one counter increment.
type OfferLedger struct {
	brokers *BrokerRegistry
}

func NewOfferLedger(brokers *BrokerRegistry) *OfferLedger {
	return &OfferLedger{brokers: brokers}
}

// Create stores offer under counter+1 and advances the counter in the same
// transaction. It never overwrites an entry.
func (l *OfferLedger) Create(tx *storage.Txn, caller string, offer Offer) (uint64, Event, error) {
	isBroker, err := l.brokers.IsBroker(tx, caller)
	if err != nil {
		return 0, Event{}, err
	}
	if !isBroker {
		return 0, Event{}, ErrNotBroker
	}

	if err := offer.Validate(); err != nil {
		return 0, Event{}, err
	}

	st, err := loadState(tx)
	if err != nil {
		return 0, Event{}, err
	}
	if st.Count == math.MaxUint64 {
		return 0, Event{}, fmt.Errorf("%w: offer counter exhausted", ErrStorageFailure)
	}

	id := st.Count + 1
	key := offerKey(id)
	if tx.Has(key) {
		return 0, Event{}, fmt.Errorf("%w: ledger entry %d already exists", ErrStorageFailure, id)
	}

	if err := save(tx, key, offer); err != nil {
		return 0, Event{}, err
	}
	st.Count = id
	if err := save(tx, stateKey, st); err != nil {
		return 0, Event{}, err
	}

	return id, newEvent("make_offer", "offer_id", strconv.FormatUint(id, 10)), nil
}

func (l *OfferLedger) Get(tx *storage.Txn, id uint64) (Offer, error) {
	var offer Offer
	ok, err := load(tx, offerKey(id), &offer)
	if err != nil {
		return Offer{}, err
	}
	if !ok {
		return Offer{}, fmt.Errorf("property with id %d does not exist: %w", id, ErrNotFound)
	}
	return offer, nil
}

func (l *OfferLedger) Count(tx *storage.Txn) (uint64, error) {
	st, err := loadState(tx)
	if err != nil {
		return 0, err
	}
	return st.Count, nil
}
