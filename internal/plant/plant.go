package plant

import (
	"context"
	"errors"
	"sync"

	"oee-platform/internal/schedule"
	"oee-platform/internal/uom"
)

// Material is a producible product type. Materials compare by name.
type Material struct {
	Name        string
	Description string
	Category    string
}

// Equal compares materials by name only.
func (m *Material) Equal(other *Material) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Name == other.Name
}

// Reason is a named downtime cause. Reasons are hierarchical and map to one
// time-loss category for aggregation.
type Reason struct {
	Name         string
	Description  string
	Parent       *Reason
	LossCategory TimeLoss
}

// EquipmentMaterial binds equipment to a producible material, carrying the
// design run rate (ideal production per hour) and the reject counting unit.
// Equality deliberately ignores equipment and compares by material only.
type EquipmentMaterial struct {
	Equipment  *Equipment
	Material   *Material
	RunRate    uom.Quantity // amount of RunRate.Unit per hour
	RejectUnit *uom.Unit
	OEETarget  float64
}

// Equal compares associations by material only.
func (em *EquipmentMaterial) Equal(other *EquipmentMaterial) bool {
	if em == nil || other == nil {
		return em == other
	}
	return em.Material.Equal(other.Material)
}

// Equipment is one node of the plant hierarchy. Identity is immutable; the
// schedule and material associations may change and are guarded for
// concurrent readers.
type Equipment struct {
	Name   string
	Parent *Equipment

	mu              sync.RWMutex
	schedule        *schedule.WorkSchedule
	materials       map[string]*EquipmentMaterial
	defaultMaterial string
}

// NewEquipment constructs an equipment node.
func NewEquipment(name string, parent *Equipment) (*Equipment, error) {
	if name == "" {
		return nil, errors.New("plant: empty equipment name")
	}
	return &Equipment{
		Name:      name,
		Parent:    parent,
		materials: make(map[string]*EquipmentMaterial),
	}, nil
}

// SetSchedule assigns a work schedule to this node.
func (e *Equipment) SetSchedule(s *schedule.WorkSchedule) {
	e.mu.Lock()
	e.schedule = s
	e.mu.Unlock()
}

// FindSchedule returns the first work schedule found walking up the
// hierarchy, or ErrNoSchedule when no ancestor carries one.
func (e *Equipment) FindSchedule() (*schedule.WorkSchedule, error) {
	for node := e; node != nil; node = node.Parent {
		node.mu.RLock()
		s := node.schedule
		node.mu.RUnlock()
		if s != nil {
			return s, nil
		}
	}
	return nil, ErrNoSchedule
}

// SetEquipmentMaterial registers or replaces the association for a material.
func (e *Equipment) SetEquipmentMaterial(em *EquipmentMaterial) error {
	if em == nil || em.Material == nil {
		return errors.New("plant: nil equipment material")
	}
	em.Equipment = e
	e.mu.Lock()
	e.materials[em.Material.Name] = em
	e.mu.Unlock()
	return nil
}

// EquipmentMaterialFor looks up the association for a material, nil if absent.
func (e *Equipment) EquipmentMaterialFor(m *Material) *EquipmentMaterial {
	if m == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.materials[m.Name]
}

// SetDefaultMaterial designates the material assumed when production counts
// arrive before any material changeover.
func (e *Equipment) SetDefaultMaterial(name string) {
	e.mu.Lock()
	e.defaultMaterial = name
	e.mu.Unlock()
}

// DefaultEquipmentMaterial returns the designated default association, nil
// if none is set.
func (e *Equipment) DefaultEquipmentMaterial() *EquipmentMaterial {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.defaultMaterial == "" {
		return nil
	}
	return e.materials[e.defaultMaterial]
}

// MaterialRepository resolves materials by name. A missing material returns
// (nil, nil); callers decide whether absence is an error.
type MaterialRepository interface {
	MaterialByName(ctx context.Context, name string) (*Material, error)
}

// ReasonRepository resolves downtime reasons by name, (nil, nil) if absent.
type ReasonRepository interface {
	ReasonByName(ctx context.Context, name string) (*Reason, error)
}

// EquipmentRepository resolves equipment nodes by name.
type EquipmentRepository interface {
	EquipmentByName(ctx context.Context, name string) (*Equipment, error)
}
