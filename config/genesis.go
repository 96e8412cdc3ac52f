package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imprintworks/imprintd/pkg/fees"
	"github.com/imprintworks/imprintd/pkg/types"
)

// Genesis holds the deployment parameters the engine is seeded with on
// first start. Owner and selector seed are immutable afterwards; treasury
// and fees become live state adjustable through admin operations.
type Genesis struct {
	Network         string        `json:"network"`
	Owner           types.Address `json:"owner"`
	Treasury        types.Address `json:"treasury"`
	PlatformFeeBps  uint32        `json:"platform_fee_bps"`
	SecondaryFeeBps uint32        `json:"secondary_fee_bps"`
	SelectorSeed    types.Hash    `json:"selector_seed"`
}

// Validate checks the genesis for operator mistakes.
func (g *Genesis) Validate() error {
	if g.Network == "" {
		return fmt.Errorf("genesis: network must not be empty")
	}
	if g.Owner.IsZero() {
		return fmt.Errorf("genesis: owner must not be zero")
	}
	if g.Treasury.IsZero() {
		return fmt.Errorf("genesis: treasury must not be zero")
	}
	if !fees.ValidBps(g.PlatformFeeBps) {
		return fmt.Errorf("genesis: platform_fee_bps %d exceeds 10000", g.PlatformFeeBps)
	}
	if !fees.ValidBps(g.SecondaryFeeBps) {
		return fmt.Errorf("genesis: secondary_fee_bps %d exceeds 10000", g.SecondaryFeeBps)
	}
	return nil
}

// LoadGenesis reads and validates a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// WriteGenesis writes a genesis file, creating parent directories as
// needed. Refuses to overwrite an existing file: genesis is written once.
func WriteGenesis(path string, g *Genesis) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("genesis %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create genesis dir: %w", err)
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode genesis: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
