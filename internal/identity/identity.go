package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/satbox/satbox-server/internal/kv"
)

// ErrNotRegistered is returned when no identity record exists for an address.
var ErrNotRegistered = errors.New("identity not registered")

const recordPrefix = "identity:"

// Record describes a registered identity. Address is the Stacks address
// the identity receives payments on; BtcAddress is the bitcoin address
// its message signatures recover to.
type Record struct {
	Address    string    `json:"address"`
	BtcAddress string    `json:"btcAddress,omitempty"`
	PublicKey  string    `json:"publicKey,omitempty"`
	Name       string    `json:"name,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Registry resolves addresses to identity records.
type Registry interface {
	// Lookup returns the record for an address, or ErrNotRegistered.
	Lookup(address string) (*Record, error)

	// Save upserts an identity record.
	Save(record *Record) error
}

// KVRegistry is a Registry over the key-value capability. Lookup tries a
// direct keyed read first and only then falls back to a full scan that
// also matches records by bitcoin address. The scan covers records
// written before addresses were keyed directly; first success wins.
type KVRegistry struct {
	db kv.Store
}

// NewKVRegistry wraps a key-value store.
func NewKVRegistry(db kv.Store) *KVRegistry {
	return &KVRegistry{db: db}
}

// Lookup returns the record for an address, or ErrNotRegistered.
func (r *KVRegistry) Lookup(address string) (*Record, error) {
	if address == "" {
		return nil, ErrNotRegistered
	}

	record, err := r.lookupKeyed(address)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, ErrNotRegistered) {
		return nil, err
	}

	return r.lookupScan(address)
}

func (r *KVRegistry) lookupKeyed(address string) (*Record, error) {
	data, err := r.db.Get([]byte(recordPrefix + address))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return unmarshalRecord(data)
}

// lookupScan is the legacy O(N) path; it matches on either address form.
func (r *KVRegistry) lookupScan(address string) (*Record, error) {
	pairs, err := r.db.List([]byte(recordPrefix))
	if err != nil {
		return nil, fmt.Errorf("scan identities: %w", err)
	}
	for _, pair := range pairs {
		record, err := unmarshalRecord(pair.Value)
		if err != nil {
			continue
		}
		if record.Address == address || (record.BtcAddress != "" && record.BtcAddress == address) {
			return record, nil
		}
	}
	return nil, ErrNotRegistered
}

// Save upserts an identity record keyed by its Stacks address.
func (r *KVRegistry) Save(record *Record) error {
	if record.Address == "" {
		return fmt.Errorf("identity address is empty")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := r.db.Put([]byte(recordPrefix+record.Address), data); err != nil {
		return fmt.Errorf("put identity: %w", err)
	}
	return nil
}

func unmarshalRecord(data []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return &record, nil
}
