package identity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satbox/satbox-server/internal/kv"
)

func TestRegistrySaveAndLookup(t *testing.T) {
	reg := NewKVRegistry(kv.NewMemory())

	record := &Record{
		Address:    "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
		BtcAddress: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		Name:       "muneeb",
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, reg.Save(record))

	got, err := reg.Lookup(record.Address)
	require.NoError(t, err)
	require.Equal(t, "muneeb", got.Name)
}

func TestRegistryLookupUnknown(t *testing.T) {
	reg := NewKVRegistry(kv.NewMemory())

	_, err := reg.Lookup("SPNOBODY")
	require.ErrorIs(t, err, ErrNotRegistered)

	_, err = reg.Lookup("")
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistryFallbackScanMatchesBtcAddress(t *testing.T) {
	db := kv.NewMemory()
	reg := NewKVRegistry(db)

	require.NoError(t, reg.Save(&Record{
		Address:    "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
		BtcAddress: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
	}))

	// The direct key misses, so the scan should find it by btc address.
	got, err := reg.Lookup("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.NoError(t, err)
	require.Equal(t, "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", got.Address)
}

func TestRegistryFallbackScanLegacyKey(t *testing.T) {
	db := kv.NewMemory()
	reg := NewKVRegistry(db)

	// Simulate a record written under a legacy key shape that the direct
	// lookup cannot address.
	legacy := Record{Address: "SP3LEGACY", Name: "old-timer"}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("identity:v0:42"), data))

	got, err := reg.Lookup("SP3LEGACY")
	require.NoError(t, err)
	require.Equal(t, "old-timer", got.Name)
}

func TestRegistrySaveRequiresAddress(t *testing.T) {
	reg := NewKVRegistry(kv.NewMemory())
	require.Error(t, reg.Save(&Record{Name: "anonymous"}))
}
