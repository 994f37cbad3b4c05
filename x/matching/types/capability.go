package types

import (
	"strings"
)

// ComputeSpec describes a capability vector. On a resource it is what the
// provider offers, on a request it is the minimum the requester needs.
type ComputeSpec struct {
	ComputePower uint64 `json:"compute_power"`
	Memory       uint64 `json:"memory"`
	Storage      uint64 `json:"storage,omitempty"`
	GpuType      string `json:"gpu_type,omitempty"`
	GpuMemory    uint64 `json:"gpu_memory,omitempty"`
}

// HasGpu reports whether an offered spec includes a GPU.
func (s ComputeSpec) HasGpu() bool {
	return strings.TrimSpace(s.GpuType) != ""
}

// NeedsGpu reports whether a required spec asks for a GPU.
func (s ComputeSpec) NeedsGpu() bool {
	return s.GpuMemory > 0 || strings.TrimSpace(s.GpuType) != ""
}

// ValidateOffer checks the structural validity of an offered capability.
// Zero power with non-zero memory is a valid offer.
func (s ComputeSpec) ValidateOffer() error {
	if s.GpuMemory > 0 && !s.HasGpu() {
		return ErrInvalidCapability.Wrap("gpu memory offered without a gpu type")
	}
	return validateGpuType(s.GpuType)
}

// ValidateRequirement checks the structural validity of a required capability.
func (s ComputeSpec) ValidateRequirement() error {
	return validateGpuType(s.GpuType)
}

func validateGpuType(gpuType string) error {
	if len(gpuType) > MaxGpuTypeLength {
		return ErrInvalidCapability.Wrapf("gpu type longer than %d bytes", MaxGpuTypeLength)
	}
	return nil
}

// Satisfies checks that the offered spec dominates the required one,
// component-wise. Dimensions are checked in a fixed order: power, memory,
// storage, then GPU.
func (s ComputeSpec) Satisfies(required ComputeSpec) error {
	if s.ComputePower < required.ComputePower {
		return ErrInsufficientComputationPower.Wrapf("offered %d, required %d", s.ComputePower, required.ComputePower)
	}
	if s.Memory < required.Memory {
		return ErrInsufficientMemory.Wrapf("offered %d, required %d", s.Memory, required.Memory)
	}
	if s.Storage < required.Storage {
		return ErrInsufficientCapability.Wrapf("storage offered %d, required %d", s.Storage, required.Storage)
	}
	if !required.NeedsGpu() {
		return nil
	}
	if !s.HasGpu() {
		return ErrInsufficientCapability.Wrap("gpu required but not offered")
	}
	if required.GpuType != "" && !strings.EqualFold(strings.TrimSpace(s.GpuType), strings.TrimSpace(required.GpuType)) {
		return ErrInsufficientCapability.Wrapf("gpu type %q offered, %q required", s.GpuType, required.GpuType)
	}
	if s.GpuMemory < required.GpuMemory {
		return ErrInsufficientCapability.Wrapf("gpu memory offered %d, required %d", s.GpuMemory, required.GpuMemory)
	}
	return nil
}
