package resolution

import (
	"context"
	"fmt"

	"oee-platform/internal/plant"
)

// Type classifies what a resolver's script result means.
type Type string

const (
	TypeAvailability Type = "AVAILABILITY"
	TypeJob          Type = "JOB"
	TypeMaterial     Type = "MATERIAL"
	TypeProdGood     Type = "PROD_GOOD"
	TypeProdReject   Type = "PROD_REJECT"
	TypeProdStartup  Type = "PROD_STARTUP"
	TypeOther        Type = "OTHER"
)

// IsValid checks membership in the resolver type set.
func (t Type) IsValid() bool {
	switch t {
	case TypeAvailability, TypeJob, TypeMaterial, TypeProdGood, TypeProdReject, TypeProdStartup, TypeOther:
		return true
	default:
		return false
	}
}

// IsProduction reports whether the type carries a produced quantity.
func (t Type) IsProduction() bool {
	return t == TypeProdGood || t == TypeProdReject || t == TypeProdStartup
}

// Config binds one raw data source to a user script for one equipment.
// LastValue holds the previous raw reading for delta/counter-style scripts;
// it is mutated on every resolution and persisted afterwards by the caller.
type Config struct {
	SourceID  string
	Type      Type
	Equipment *plant.Equipment
	Script    string
	LastValue any
}

// Validate checks the static part of the configuration.
func (c *Config) Validate() error {
	if c.SourceID == "" {
		return fmt.Errorf("%w: empty source id", ErrConfiguration)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: invalid resolver type %q for source %s", ErrConfiguration, c.Type, c.SourceID)
	}
	if c.Equipment == nil {
		return fmt.Errorf("%w: no equipment for source %s", ErrConfiguration, c.SourceID)
	}
	return nil
}

// ConfigRepository loads and stores resolver configurations.
type ConfigRepository interface {
	FetchConfigs(ctx context.Context) ([]*Config, error)
	SaveConfig(ctx context.Context, cfg *Config) error
}
