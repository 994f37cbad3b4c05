package keeper

import (
	"encoding/binary"

	"github.com/calctra/resmatch/x/matching/types"
)

var (
	// ParamsKey is the key for module parameters
	ParamsKey = []byte{0x01}

	// SystemStateKey is the key for the sequence counters and the active match gauge
	SystemStateKey = []byte{0x02}

	// ResourceKeyPrefix is the prefix for resource storage
	ResourceKeyPrefix = []byte{0x03}

	// RequestKeyPrefix is the prefix for request storage
	RequestKeyPrefix = []byte{0x04}

	// ActiveResourcesPrefix is the prefix for indexing active resources
	ActiveResourcesPrefix = []byte{0x05}

	// ResourcesByProviderPrefix is the prefix for indexing resources by provider
	ResourcesByProviderPrefix = []byte{0x06}

	// RequestsByStatusPrefix is the prefix for indexing requests by status
	RequestsByStatusPrefix = []byte{0x07}

	// RequestsByRequesterPrefix is the prefix for indexing requests by requester
	RequestsByRequesterPrefix = []byte{0x08}
)

// GetResourceKey returns the store key for a resource
func GetResourceKey(resourceID uint64) []byte {
	return append(append([]byte{}, ResourceKeyPrefix...), uint64ToBytes(resourceID)...)
}

// GetRequestKey returns the store key for a request
func GetRequestKey(requestID uint64) []byte {
	return append(append([]byte{}, RequestKeyPrefix...), uint64ToBytes(requestID)...)
}

// GetActiveResourceKey returns the active resource index key
func GetActiveResourceKey(resourceID uint64) []byte {
	return append(append([]byte{}, ActiveResourcesPrefix...), uint64ToBytes(resourceID)...)
}

// GetResourcesByProviderPrefix returns the index prefix for one provider
func GetResourcesByProviderPrefix(provider types.Identity) []byte {
	return append(append([]byte{}, ResourcesByProviderPrefix...), lengthPrefixed(provider)...)
}

// GetResourceByProviderKey returns the provider index key for a resource
func GetResourceByProviderKey(provider types.Identity, resourceID uint64) []byte {
	return append(GetResourcesByProviderPrefix(provider), uint64ToBytes(resourceID)...)
}

// GetRequestsByStatusPrefix returns the index prefix for one status
func GetRequestsByStatusPrefix(status types.RequestStatus) []byte {
	bz := make([]byte, 4)
	binary.BigEndian.PutUint32(bz, uint32(status))
	return append(append([]byte{}, RequestsByStatusPrefix...), bz...)
}

// GetRequestByStatusKey returns the status index key for a request
func GetRequestByStatusKey(status types.RequestStatus, requestID uint64) []byte {
	return append(GetRequestsByStatusPrefix(status), uint64ToBytes(requestID)...)
}

// GetRequestsByRequesterPrefix returns the index prefix for one requester
func GetRequestsByRequesterPrefix(requester types.Identity) []byte {
	return append(append([]byte{}, RequestsByRequesterPrefix...), lengthPrefixed(requester)...)
}

// GetRequestByRequesterKey returns the requester index key for a request
func GetRequestByRequesterKey(requester types.Identity, requestID uint64) []byte {
	return append(GetRequestsByRequesterPrefix(requester), uint64ToBytes(requestID)...)
}

// lengthPrefixed encodes an identity so that no identity's prefix is a
// prefix of another's.
func lengthPrefixed(id types.Identity) []byte {
	bz := make([]byte, 2, 2+len(id))
	binary.BigEndian.PutUint16(bz, uint16(len(id)))
	return append(bz, id...)
}

func uint64ToBytes(v uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return bz
}

// idFromIndexKey reads the trailing big-endian id of an index key.
func idFromIndexKey(key []byte) uint64 {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
