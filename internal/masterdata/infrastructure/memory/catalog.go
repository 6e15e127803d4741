package memory

import (
	"context"
	"sync"

	"oee-platform/internal/plant"
	resolution "oee-platform/internal/resolution/domain"
)

// Catalog is an in-memory master-data store: materials, reasons, equipment
// and resolver configurations. It backs tests and YAML-bootstrapped
// deployments and satisfies the catalog repository interfaces.
type Catalog struct {
	mu        sync.RWMutex
	materials map[string]*plant.Material
	reasons   map[string]*plant.Reason
	equipment map[string]*plant.Equipment
	resolvers map[string]*resolution.Config
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		materials: make(map[string]*plant.Material),
		reasons:   make(map[string]*plant.Reason),
		equipment: make(map[string]*plant.Equipment),
		resolvers: make(map[string]*resolution.Config),
	}
}

// AddMaterial registers a material.
func (c *Catalog) AddMaterial(m *plant.Material) {
	if m == nil {
		return
	}
	c.mu.Lock()
	c.materials[m.Name] = m
	c.mu.Unlock()
}

// AddReason registers a downtime reason.
func (c *Catalog) AddReason(r *plant.Reason) {
	if r == nil {
		return
	}
	c.mu.Lock()
	c.reasons[r.Name] = r
	c.mu.Unlock()
}

// AddEquipment registers an equipment node.
func (c *Catalog) AddEquipment(e *plant.Equipment) {
	if e == nil {
		return
	}
	c.mu.Lock()
	c.equipment[e.Name] = e
	c.mu.Unlock()
}

// AddResolverConfig registers a resolver configuration by source id.
func (c *Catalog) AddResolverConfig(cfg *resolution.Config) {
	if cfg == nil {
		return
	}
	c.mu.Lock()
	c.resolvers[cfg.SourceID] = cfg
	c.mu.Unlock()
}

// MaterialByName resolves a material, (nil, nil) if absent.
func (c *Catalog) MaterialByName(ctx context.Context, name string) (*plant.Material, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.materials[name], nil
}

// ReasonByName resolves a reason, (nil, nil) if absent.
func (c *Catalog) ReasonByName(ctx context.Context, name string) (*plant.Reason, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reasons[name], nil
}

// EquipmentByName resolves an equipment node, ErrNotFound if absent.
func (c *Catalog) EquipmentByName(ctx context.Context, name string) (*plant.Equipment, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.equipment[name]; ok {
		return e, nil
	}
	return nil, plant.ErrNotFound
}

// FetchConfigs returns every registered resolver configuration.
func (c *Catalog) FetchConfigs(ctx context.Context) ([]*resolution.Config, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	configs := make([]*resolution.Config, 0, len(c.resolvers))
	for _, cfg := range c.resolvers {
		configs = append(configs, cfg)
	}
	return configs, nil
}

// SaveConfig stores a resolver configuration (upsert by source id).
func (c *Catalog) SaveConfig(ctx context.Context, cfg *resolution.Config) error {
	_ = ctx
	if cfg == nil {
		return resolution.ErrConfiguration
	}
	c.mu.Lock()
	c.resolvers[cfg.SourceID] = cfg
	c.mu.Unlock()
	return nil
}
