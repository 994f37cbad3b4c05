package types

import (
	"strings"
	"time"

	"cosmossdk.io/math"
)

// Resource is a provider's standing offer of compute capacity.
// Resources are never deleted, only deactivated.
type Resource struct {
	Id             uint64      `json:"id"`
	Provider       Identity    `json:"provider"`
	ResourceType   string      `json:"resource_type,omitempty"`
	Spec           ComputeSpec `json:"spec"`
	PricePerUnit   uint64      `json:"price_per_unit"`
	Location       string      `json:"location"`
	Active         bool        `json:"active"`
	Reputation     int64       `json:"reputation"`
	TotalUsageTime uint64      `json:"total_usage_time"`
	ActiveMatches  uint32      `json:"active_matches"`
	RegisteredAt   time.Time   `json:"registered_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ValidateBasic performs stateless checks on the offer.
func (r Resource) ValidateBasic() error {
	if err := r.Provider.Validate("provider"); err != nil {
		return err
	}
	if len(r.ResourceType) > MaxLabelLength {
		return ErrInvalidCapability.Wrapf("resource type longer than %d bytes", MaxLabelLength)
	}
	if err := ValidateLocation(r.Location); err != nil {
		return err
	}
	return r.Spec.ValidateOffer()
}

// Request is a requester's demand for compute capacity.
type Request struct {
	Id                uint64        `json:"id"`
	Requester         Identity      `json:"requester"`
	ComputationType   string        `json:"computation_type,omitempty"`
	Spec              ComputeSpec   `json:"spec"`
	MaxPricePerUnit   uint64        `json:"max_price_per_unit"`
	PreferredLocation string        `json:"preferred_location,omitempty"`
	StrictLocation    bool          `json:"strict_location,omitempty"`
	MinReputation     int64         `json:"min_reputation"`
	DurationEstimate  uint64        `json:"duration_estimate,omitempty"`
	Status            RequestStatus `json:"status"`
	MatchedResource   *uint64       `json:"matched_resource,omitempty"`
	AgreedPrice       uint64        `json:"agreed_price,omitempty"`
	ActualDuration    uint64        `json:"actual_duration,omitempty"`
	SettledAmount     *math.Int     `json:"settled_amount,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	MatchedAt         *time.Time    `json:"matched_at,omitempty"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
}

// ValidateBasic performs stateless checks on the demand.
func (r Request) ValidateBasic() error {
	if err := r.Requester.Validate("requester"); err != nil {
		return err
	}
	if len(r.ComputationType) > MaxLabelLength {
		return ErrInvalidCapability.Wrapf("computation type longer than %d bytes", MaxLabelLength)
	}
	if len(r.PreferredLocation) > MaxLocationLength {
		return ErrInvalidCapability.Wrapf("preferred location longer than %d bytes", MaxLocationLength)
	}
	if r.StrictLocation && strings.TrimSpace(r.PreferredLocation) == "" {
		return ErrInvalidCapability.Wrap("strict location requires a preferred location")
	}
	return r.Spec.ValidateRequirement()
}

// HasMatch reports whether the request currently names a resource.
func (r Request) HasMatch() bool {
	return r.MatchedResource != nil
}

// MatchedResourceID returns the matched resource id, or zero when unset.
func (r Request) MatchedResourceID() uint64 {
	if r.MatchedResource == nil {
		return 0
	}
	return *r.MatchedResource
}

// ValidateLocation checks a resource location code.
func ValidateLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return ErrInvalidCapability.Wrap("location is required")
	}
	if len(location) > MaxLocationLength {
		return ErrInvalidCapability.Wrapf("location longer than %d bytes", MaxLocationLength)
	}
	return nil
}

// SystemState is the singleton holding sequence generators and the active
// engagement gauge.
type SystemState struct {
	Authority     Identity `json:"authority"`
	ResourceCount uint64   `json:"resource_count"`
	RequestCount  uint64   `json:"request_count"`
	ActiveMatches uint64   `json:"active_matches"`
}
