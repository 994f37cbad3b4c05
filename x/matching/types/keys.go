package types

const (
	// ModuleName defines the module name
	ModuleName = "matching"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// MaxLocationLength bounds the location code of a resource or request
	MaxLocationLength = 64

	// MaxLabelLength bounds free-form labels such as resource and computation type
	MaxLabelLength = 64

	// MaxGpuTypeLength bounds the GPU model name
	MaxGpuTypeLength = 64

	// MaxIdentityLength bounds the encoded length of an identity
	MaxIdentityLength = 256
)
