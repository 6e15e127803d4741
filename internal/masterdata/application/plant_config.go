// Package application loads plant master data from declarative YAML files
// into the in-memory catalog: units, materials, reason trees, the equipment
// hierarchy with run rates and schedules, and resolver scripts.
package application

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"oee-platform/internal/masterdata/infrastructure/memory"
	"oee-platform/internal/plant"
	resolution "oee-platform/internal/resolution/domain"
	"oee-platform/internal/schedule"
	"oee-platform/internal/uom"
)

// PlantConfig is the YAML shape of a complete plant definition.
type PlantConfig struct {
	Units     []UnitConfig          `yaml:"units"`
	Materials []MaterialConfig      `yaml:"materials"`
	Reasons   []ReasonConfig        `yaml:"reasons"`
	Schedules []schedule.FileConfig `yaml:"schedules"`
	Equipment []EquipmentConfig     `yaml:"equipment"`
	Resolvers []ResolverConfig      `yaml:"resolvers"`
}

// UnitConfig adds a unit on top of the stock registry.
type UnitConfig struct {
	Name   string  `yaml:"name"`
	Symbol string  `yaml:"symbol"`
	Base   string  `yaml:"base"`
	Factor float64 `yaml:"factor"`
}

// MaterialConfig declares one producible material.
type MaterialConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

// ReasonConfig declares one downtime reason. Parents must be declared before
// their children.
type ReasonConfig struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Parent       string `yaml:"parent"`
	LossCategory string `yaml:"lossCategory"`
}

// EquipmentConfig declares one node of the plant hierarchy. Parents must be
// declared before their children.
type EquipmentConfig struct {
	Name            string                    `yaml:"name"`
	Parent          string                    `yaml:"parent"`
	Schedule        string                    `yaml:"schedule"`
	DefaultMaterial string                    `yaml:"defaultMaterial"`
	Materials       []EquipmentMaterialConfig `yaml:"materials"`
}

// EquipmentMaterialConfig binds a material to equipment with its design rate.
type EquipmentMaterialConfig struct {
	Material   string  `yaml:"material"`
	RunRate    float64 `yaml:"runRate"` // units per hour
	Unit       string  `yaml:"unit"`
	RejectUnit string  `yaml:"rejectUnit"`
	OEETarget  float64 `yaml:"oeeTarget"`
}

// ResolverConfig declares one source-to-script binding.
type ResolverConfig struct {
	SourceID  string `yaml:"sourceId"`
	Type      string `yaml:"type"`
	Equipment string `yaml:"equipment"`
	Script    string `yaml:"script"`
}

// LoadPlantFile reads a plant definition and builds the catalog.
func LoadPlantFile(path string, registry *uom.Registry) (*memory.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg PlantConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("masterdata: parse %s: %w", path, err)
	}
	return cfg.Build(registry)
}

// Build converts the parsed definition into a populated catalog. The
// registry gains any units the file declares.
func (c PlantConfig) Build(registry *uom.Registry) (*memory.Catalog, error) {
	if registry == nil {
		registry = uom.DefaultRegistry()
	}
	catalog := memory.NewCatalog()

	for _, uc := range c.Units {
		unit, err := uom.NewUnit(uc.Name, uc.Symbol, uc.Base, decimal.NewFromFloat(uc.Factor))
		if err != nil {
			return nil, err
		}
		registry.Register(unit)
	}

	for _, mc := range c.Materials {
		if mc.Name == "" {
			return nil, fmt.Errorf("masterdata: material with empty name")
		}
		catalog.AddMaterial(&plant.Material{Name: mc.Name, Description: mc.Description, Category: mc.Category})
	}

	reasons := make(map[string]*plant.Reason, len(c.Reasons))
	for _, rc := range c.Reasons {
		if rc.Name == "" {
			return nil, fmt.Errorf("masterdata: reason with empty name")
		}
		category := plant.TimeLoss(rc.LossCategory)
		if rc.LossCategory != "" && !category.IsValid() {
			return nil, fmt.Errorf("masterdata: reason %q: unknown loss category %q", rc.Name, rc.LossCategory)
		}
		reason := &plant.Reason{Name: rc.Name, Description: rc.Description, LossCategory: category}
		if rc.Parent != "" {
			parent, ok := reasons[rc.Parent]
			if !ok {
				return nil, fmt.Errorf("masterdata: reason %q: undeclared parent %q", rc.Name, rc.Parent)
			}
			reason.Parent = parent
		}
		reasons[rc.Name] = reason
		catalog.AddReason(reason)
	}

	schedules := make(map[string]*schedule.WorkSchedule, len(c.Schedules))
	for _, sc := range c.Schedules {
		built, err := sc.Build()
		if err != nil {
			return nil, err
		}
		schedules[sc.Name] = built
	}

	equipment := make(map[string]*plant.Equipment, len(c.Equipment))
	for _, ec := range c.Equipment {
		var parent *plant.Equipment
		if ec.Parent != "" {
			var ok bool
			parent, ok = equipment[ec.Parent]
			if !ok {
				return nil, fmt.Errorf("masterdata: equipment %q: undeclared parent %q", ec.Name, ec.Parent)
			}
		}
		node, err := plant.NewEquipment(ec.Name, parent)
		if err != nil {
			return nil, err
		}
		if ec.Schedule != "" {
			sched, ok := schedules[ec.Schedule]
			if !ok {
				return nil, fmt.Errorf("masterdata: equipment %q: undeclared schedule %q", ec.Name, ec.Schedule)
			}
			node.SetSchedule(sched)
		}
		for _, emc := range ec.Materials {
			em, err := buildEquipmentMaterial(catalog, registry, ec.Name, emc)
			if err != nil {
				return nil, err
			}
			if err := node.SetEquipmentMaterial(em); err != nil {
				return nil, err
			}
		}
		if ec.DefaultMaterial != "" {
			node.SetDefaultMaterial(ec.DefaultMaterial)
		}
		equipment[ec.Name] = node
		catalog.AddEquipment(node)
	}

	for _, rc := range c.Resolvers {
		node, ok := equipment[rc.Equipment]
		if !ok {
			return nil, fmt.Errorf("masterdata: resolver %q: undeclared equipment %q", rc.SourceID, rc.Equipment)
		}
		cfg := &resolution.Config{
			SourceID:  rc.SourceID,
			Type:      resolution.Type(rc.Type),
			Equipment: node,
			Script:    rc.Script,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		catalog.AddResolverConfig(cfg)
	}
	return catalog, nil
}

func buildEquipmentMaterial(catalog *memory.Catalog, registry *uom.Registry, equipmentName string, emc EquipmentMaterialConfig) (*plant.EquipmentMaterial, error) {
	material, _ := catalog.MaterialByName(context.Background(), emc.Material)
	if material == nil {
		return nil, fmt.Errorf("masterdata: equipment %q: undeclared material %q", equipmentName, emc.Material)
	}
	if emc.RunRate <= 0 {
		return nil, fmt.Errorf("masterdata: equipment %q, material %q: %w", equipmentName, emc.Material, plant.ErrNoRunRate)
	}
	unit, err := registry.Find(emc.Unit)
	if err != nil {
		return nil, fmt.Errorf("masterdata: equipment %q, material %q: %w", equipmentName, emc.Material, err)
	}
	rejectUnit := unit
	if emc.RejectUnit != "" {
		rejectUnit, err = registry.Find(emc.RejectUnit)
		if err != nil {
			return nil, fmt.Errorf("masterdata: equipment %q, material %q: %w", equipmentName, emc.Material, err)
		}
	}
	return &plant.EquipmentMaterial{
		Material:   material,
		RunRate:    uom.NewQuantity(emc.RunRate, unit),
		RejectUnit: rejectUnit,
		OEETarget:  emc.OEETarget,
	}, nil
}
