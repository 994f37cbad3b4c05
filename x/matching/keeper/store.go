package keeper

import (
	"encoding/json"

	"cosmossdk.io/store/cachekv"
	storetypes "cosmossdk.io/store/types"

	"github.com/calctra/resmatch/x/matching/types"
)

// branch returns a cache over the keeper store. Writes staged in the branch
// reach the backing store only through commit.
func (k *Keeper) branch() *cachekv.Store {
	return cachekv.NewStore(k.store)
}

// getJSON decodes the value at key into v. It reports false when the key is absent.
func getJSON(store storetypes.KVStore, key []byte, v any) (bool, error) {
	bz := store.Get(key)
	if bz == nil {
		return false, nil
	}
	if err := json.Unmarshal(bz, v); err != nil {
		return true, types.ErrStoreFailure.Wrapf("decode %x: %v", key, err)
	}
	return true, nil
}

func setJSON(store storetypes.KVStore, key []byte, v any) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return types.ErrStoreFailure.Wrapf("encode %x: %v", key, err)
	}
	store.Set(key, bz)
	return nil
}

// collectIndexIDs reads every id under an index prefix. The iterator is
// closed before the caller touches the store again.
func collectIndexIDs(store storetypes.KVStore, prefix []byte) []uint64 {
	iterator := storetypes.KVStorePrefixIterator(store, prefix)
	defer iterator.Close()

	var ids []uint64
	for ; iterator.Valid(); iterator.Next() {
		ids = append(ids, idFromIndexKey(iterator.Key()))
	}
	return ids
}

// decodeAll hands every value under prefix to fn, in key order. The iterator
// is drained and closed before decodeAll returns.
func decodeAll(store storetypes.KVStore, prefix []byte, fn func(value []byte) error) error {
	iterator := storetypes.KVStorePrefixIterator(store, prefix)
	var values [][]byte
	for ; iterator.Valid(); iterator.Next() {
		values = append(values, iterator.Value())
	}
	if err := iterator.Close(); err != nil {
		return types.ErrStoreFailure.Wrapf("close iterator: %v", err)
	}

	for _, bz := range values {
		if err := fn(bz); err != nil {
			return err
		}
	}
	return nil
}
