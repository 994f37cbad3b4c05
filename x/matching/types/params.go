package types

import (
	"fmt"
	"math"
)

const (
	DefaultMaxMatchesPerResource uint32 = 1
	DefaultReputationFloor       int64  = math.MinInt64
	DefaultReputationCeiling     int64  = math.MaxInt64
	DefaultReputationReward      int64  = 1
	DefaultReputationPenalty     int64  = 1
)

// Params are the tunable policies of the matching module.
type Params struct {
	// MaxMatchesPerResource is how many live engagements one resource may hold.
	MaxMatchesPerResource uint32 `json:"max_matches_per_resource" mapstructure:"max_matches_per_resource"`
	ReputationFloor       int64  `json:"reputation_floor" mapstructure:"reputation_floor"`
	ReputationCeiling     int64  `json:"reputation_ceiling" mapstructure:"reputation_ceiling"`
	ReputationReward      int64  `json:"reputation_reward" mapstructure:"reputation_reward"`
	ReputationPenalty     int64  `json:"reputation_penalty" mapstructure:"reputation_penalty"`
	// StrictLocation turns every preferred location into a hard constraint.
	StrictLocation bool `json:"strict_location" mapstructure:"strict_location"`
}

// DefaultParams returns default module parameters
func DefaultParams() Params {
	return Params{
		MaxMatchesPerResource: DefaultMaxMatchesPerResource,
		ReputationFloor:       DefaultReputationFloor,
		ReputationCeiling:     DefaultReputationCeiling,
		ReputationReward:      DefaultReputationReward,
		ReputationPenalty:     DefaultReputationPenalty,
		StrictLocation:        false,
	}
}

// Validate validates the params
func (p Params) Validate() error {
	if p.MaxMatchesPerResource == 0 {
		return fmt.Errorf("max matches per resource must be positive")
	}
	if p.ReputationFloor > 0 {
		return fmt.Errorf("reputation floor must not be positive: %d", p.ReputationFloor)
	}
	if p.ReputationCeiling < 0 {
		return fmt.Errorf("reputation ceiling must not be negative: %d", p.ReputationCeiling)
	}
	if p.ReputationReward < 0 || p.ReputationPenalty < 0 {
		return fmt.Errorf("reputation reward and penalty must not be negative")
	}
	return nil
}
