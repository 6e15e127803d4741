package application

import (
	"sync"

	"oee-platform/internal/plant"
)

// EquipmentContext is the shared running state the resolution engine keeps
// per equipment: the material currently produced and the active job. It is
// created by the caller, passed by reference into every resolution, and
// safe for concurrent use.
type EquipmentContext struct {
	mu        sync.RWMutex
	materials map[string]*plant.Material
	jobs      map[string]string
}

// NewEquipmentContext builds an empty context.
func NewEquipmentContext() *EquipmentContext {
	return &EquipmentContext{
		materials: make(map[string]*plant.Material),
		jobs:      make(map[string]string),
	}
}

// Material returns the current material for the equipment, nil if unknown.
func (c *EquipmentContext) Material(equipment *plant.Equipment) *plant.Material {
	if equipment == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.materials[equipment.Name]
}

// SetMaterial overwrites the current material for the equipment.
func (c *EquipmentContext) SetMaterial(equipment *plant.Equipment, material *plant.Material) {
	if equipment == nil {
		return
	}
	c.mu.Lock()
	c.materials[equipment.Name] = material
	c.mu.Unlock()
}

// Job returns the current job identifier for the equipment, "" if unknown.
func (c *EquipmentContext) Job(equipment *plant.Equipment) string {
	if equipment == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jobs[equipment.Name]
}

// SetJob overwrites the current job identifier for the equipment.
func (c *EquipmentContext) SetJob(equipment *plant.Equipment, job string) {
	if equipment == nil {
		return
	}
	c.mu.Lock()
	c.jobs[equipment.Name] = job
	c.mu.Unlock()
}
