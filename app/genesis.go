package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calctra/resmatch/x/matching/types"
)

// LoadGenesis reads and validates a matching genesis file
func LoadGenesis(path string) (types.GenesisState, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return types.GenesisState{}, fmt.Errorf("failed to read genesis file: %w", err)
	}

	var gs types.GenesisState
	if err := json.Unmarshal(bz, &gs); err != nil {
		return types.GenesisState{}, fmt.Errorf("failed to decode genesis file %s: %w", path, err)
	}
	if err := gs.Validate(); err != nil {
		return types.GenesisState{}, types.ErrInvalidGenesis.Wrapf("%s: %s", path, err)
	}
	return gs, nil
}

// WriteGenesis writes gs as indented JSON, creating parent directories
func WriteGenesis(path string, gs types.GenesisState) error {
	bz, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, append(bz, '\n'), 0o600)
}

// NewDefaultGenesisState builds the genesis an empty store starts from when
// no genesis file is configured.
func NewDefaultGenesisState(cfg Config) types.GenesisState {
	gs := types.DefaultGenesis(cfg.Authority)
	gs.Params = cfg.Matching
	return *gs
}
