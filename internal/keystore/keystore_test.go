package keystore

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiwinews/delegation-api/internal/keys"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	return store
}

func newTestKey(t *testing.T) *keys.DelegatedKey {
	t.Helper()
	key, err := keys.NewGenerator().Key()
	require.NoError(t, err)
	return key
}

func TestPutAndAccount(t *testing.T) {
	ownerA := common.HexToAddress("0xaaa0000000000000000000000000000000000001")
	ownerB := common.HexToAddress("0xbbb0000000000000000000000000000000000002")

	t.Run("single key without filter is returned", func(t *testing.T) {
		store := newTestStore(t)
		key := newTestKey(t)
		require.NoError(t, store.Put(ownerA, key))

		account, err := store.Account(nil)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, ownerA, account.Owner)
		assert.Equal(t, key.Address, account.Key.Address)
	})

	t.Run("multiple keys without filter return nothing", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ownerA, newTestKey(t)))
		require.NoError(t, store.Put(ownerB, newTestKey(t)))

		account, err := store.Account(nil)
		require.NoError(t, err)
		assert.Nil(t, account)
	})

	t.Run("filter selects among multiple keys", func(t *testing.T) {
		store := newTestStore(t)
		keyA := newTestKey(t)
		require.NoError(t, store.Put(ownerA, keyA))
		require.NoError(t, store.Put(ownerB, newTestKey(t)))

		account, err := store.Account(&ownerA)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, keyA.Address, account.Key.Address)
	})

	t.Run("unmatched filter returns nothing even with one key stored", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ownerA, newTestKey(t)))

		account, err := store.Account(&ownerB)
		require.NoError(t, err)
		assert.Nil(t, account)
	})

	t.Run("re-storing overwrites the previous key", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Put(ownerA, newTestKey(t)))
		replacement := newTestKey(t)
		require.NoError(t, store.Put(ownerA, replacement))

		account, err := store.Account(&ownerA)
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, replacement.Address, account.Key.Address)
	})

	t.Run("rejects a nil key", func(t *testing.T) {
		store := newTestStore(t)
		assert.Error(t, store.Put(ownerA, nil))
	})
}

func TestDelete(t *testing.T) {
	owner := common.HexToAddress("0xaaa0000000000000000000000000000000000001")
	store := newTestStore(t)
	require.NoError(t, store.Put(owner, newTestKey(t)))

	require.NoError(t, store.Delete(owner))
	account, err := store.Account(&owner)
	require.NoError(t, err)
	assert.Nil(t, account)

	// Deleting again is a no-op.
	assert.NoError(t, store.Delete(owner))
}

func TestPending(t *testing.T) {
	owner := common.HexToAddress("0xccc0000000000000000000000000000000000003")
	txHash := common.HexToHash("0xdeadbeef")

	t.Run("round-trips a pending record", func(t *testing.T) {
		store := newTestStore(t)
		key := newTestKey(t)
		require.NoError(t, store.PutPending(Pending{Owner: owner, Key: key.Hex(), TxHash: txHash}))

		pending, err := store.Pending(owner)
		require.NoError(t, err)
		require.NotNil(t, pending)
		assert.Equal(t, owner, pending.Owner)
		assert.Equal(t, key.Hex(), pending.Key)
		assert.Equal(t, txHash, pending.TxHash)
	})

	t.Run("absent record returns nil", func(t *testing.T) {
		store := newTestStore(t)
		pending, err := store.Pending(owner)
		require.NoError(t, err)
		assert.Nil(t, pending)
	})

	t.Run("delete clears the record", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.PutPending(Pending{Owner: owner, Key: newTestKey(t).Hex(), TxHash: txHash}))
		require.NoError(t, store.DeletePending(owner))

		pending, err := store.Pending(owner)
		require.NoError(t, err)
		assert.Nil(t, pending)
	})

	t.Run("pending record does not count as a stored key", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.PutPending(Pending{Owner: owner, Key: newTestKey(t).Hex(), TxHash: txHash}))

		account, err := store.Account(nil)
		require.NoError(t, err)
		assert.Nil(t, account)
	})
}
