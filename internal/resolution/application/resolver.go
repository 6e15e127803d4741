package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"oee-platform/internal/plant"
	resolution "oee-platform/internal/resolution/domain"
	"oee-platform/internal/resolution/scripting"
	"oee-platform/internal/uom"
)

// EventResolver turns raw source readings into classified domain events. It
// caches resolver configurations, reasons and materials; the caches fill
// lazily from a single bulk load and stay valid until ClearCache.
//
// Resolutions for different equipment run in parallel; resolutions for the
// same equipment are serialized, since lastValue and the shared context are
// not commutative under interleaving.
type EventResolver struct {
	configs   resolution.ConfigRepository
	materials plant.MaterialRepository
	reasons   plant.ReasonRepository
	engine    scripting.Engine
	logger    *log.Logger

	loaded        atomic.Bool
	byEquipment   sync.Map // equipment name -> []*resolution.Config
	bySource      sync.Map // source id -> *resolution.Config
	reasonCache   sync.Map // reason name -> *plant.Reason
	materialCache sync.Map // material name -> *plant.Material

	equipmentLocks sync.Map // equipment name -> *sync.Mutex
}

// NewEventResolver constructs the resolution engine.
func NewEventResolver(
	configs resolution.ConfigRepository,
	materials plant.MaterialRepository,
	reasons plant.ReasonRepository,
	engine scripting.Engine,
	logger *log.Logger,
) (*EventResolver, error) {
	if configs == nil {
		return nil, errors.New("resolution: nil config repository")
	}
	if materials == nil {
		return nil, errors.New("resolution: nil material repository")
	}
	if reasons == nil {
		return nil, errors.New("resolution: nil reason repository")
	}
	if engine == nil {
		return nil, errors.New("resolution: nil script engine")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &EventResolver{
		configs:   configs,
		materials: materials,
		reasons:   reasons,
		engine:    engine,
		logger:    logger,
	}, nil
}

// ClearCache empties the resolver, reason and material caches. Used after
// external configuration edits.
func (r *EventResolver) ClearCache() {
	r.loaded.Store(false)
	clearMap(&r.byEquipment)
	clearMap(&r.bySource)
	clearMap(&r.reasonCache)
	clearMap(&r.materialCache)
}

func clearMap(m *sync.Map) {
	m.Range(func(key, _ any) bool {
		m.Delete(key)
		return true
	})
}

// ensureCached fills the resolver caches from a single bulk load. Racing
// loads are harmless: each writes the same data, last writer wins.
func (r *EventResolver) ensureCached(ctx context.Context) error {
	if r.loaded.Load() {
		return nil
	}
	configs, err := r.configs.FetchConfigs(ctx)
	if err != nil {
		return fmt.Errorf("resolution: load resolver configs: %w", err)
	}

	grouped := make(map[string][]*resolution.Config)
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return err
		}
		grouped[cfg.Equipment.Name] = append(grouped[cfg.Equipment.Name], cfg)
		r.bySource.Store(cfg.SourceID, cfg)
	}
	for name, list := range grouped {
		r.byEquipment.Store(name, list)
	}
	r.loaded.Store(true)
	return nil
}

// Resolvers returns all resolver configurations for an equipment.
func (r *EventResolver) Resolvers(ctx context.Context, equipment *plant.Equipment) ([]*resolution.Config, error) {
	if equipment == nil {
		return nil, fmt.Errorf("%w: nil equipment", resolution.ErrConfiguration)
	}
	if err := r.ensureCached(ctx); err != nil {
		return nil, err
	}
	value, ok := r.byEquipment.Load(equipment.Name)
	if !ok {
		return nil, fmt.Errorf("%w: no resolvers for equipment %s", resolution.ErrNotFound, equipment.Name)
	}
	return value.([]*resolution.Config), nil
}

// Resolver returns the unique resolver configuration for a source id.
func (r *EventResolver) Resolver(ctx context.Context, sourceID string) (*resolution.Config, error) {
	if err := r.ensureCached(ctx); err != nil {
		return nil, err
	}
	value, ok := r.bySource.Load(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: no resolver for source id %s", resolution.ErrNotFound, sourceID)
	}
	return value.(*resolution.Config), nil
}

func (r *EventResolver) lockEquipment(name string) *sync.Mutex {
	value, _ := r.equipmentLocks.LoadOrStore(name, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// ConfigSnapshot copies the configuration under the equipment's resolution
// lock. Invoke mutates cfg.LastValue while holding that lock, so persisting
// the live config from another goroutine would race; callers persist the
// snapshot instead.
func (r *EventResolver) ConfigSnapshot(cfg *resolution.Config) *resolution.Config {
	if cfg == nil || cfg.Equipment == nil {
		return cfg
	}
	lock := r.lockEquipment(cfg.Equipment.Name)
	lock.Lock()
	defer lock.Unlock()
	snapshot := *cfg
	return &snapshot
}

// Invoke runs the resolver's script against the raw value and builds the
// resolved event. Side effects: cfg.LastValue is set to the raw value, and
// the shared context's current material/job may be overwritten. A failure
// after the lastValue assignment keeps that assignment (the raw value was
// genuinely observed) but returns no event.
func (r *EventResolver) Invoke(ctx context.Context, cfg *resolution.Config, shared *EquipmentContext, rawValue any, timestamp time.Time) (*resolution.Event, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil resolver config", resolution.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Script == "" {
		return nil, fmt.Errorf("%w: no script for source id %s on equipment %s",
			resolution.ErrConfiguration, cfg.SourceID, cfg.Equipment.Name)
	}
	if shared == nil {
		return nil, fmt.Errorf("%w: nil equipment context", resolution.ErrConfiguration)
	}

	lock := r.lockEquipment(cfg.Equipment.Name)
	lock.Lock()
	defer lock.Unlock()

	// The first-ever reading has no meaningful delta.
	if cfg.LastValue == nil {
		cfg.LastValue = rawValue
	}

	result, err := r.engine.Run(ctx, cfg.Script, scripting.Call{
		Context:       shared,
		CurrentValue:  rawValue,
		PreviousValue: cfg.LastValue,
	})
	if err != nil {
		return nil, err
	}

	// Scripts only ever see the immediately preceding raw value.
	cfg.LastValue = rawValue

	event := &resolution.Event{
		Equipment: cfg.Equipment,
		Type:      cfg.Type,
		SourceID:  cfg.SourceID,
		Timestamp: timestamp,
		Input:     rawValue,
		Output:    result,
	}

	if err := r.resolveMaterial(ctx, event, shared); err != nil {
		return nil, err
	}
	if err := r.resolveJob(event, shared); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case resolution.TypeAvailability:
		if err := r.processReason(ctx, event); err != nil {
			return nil, err
		}
	case resolution.TypeProdGood, resolution.TypeProdReject, resolution.TypeProdStartup:
		if err := r.processProductionCount(event); err != nil {
			return nil, err
		}
	case resolution.TypeJob, resolution.TypeMaterial, resolution.TypeOther:
		// JOB and MATERIAL were attached above; OTHER passes the raw
		// script result through unchanged.
	}

	return event, nil
}

// resolveMaterial attaches the event material: for MATERIAL resolvers the
// script result names the new material and overwrites the shared context;
// all other types read the current material from the context.
func (r *EventResolver) resolveMaterial(ctx context.Context, event *resolution.Event, shared *EquipmentContext) error {
	if event.Type != resolution.TypeMaterial {
		event.Material = shared.Material(event.Equipment)
		return nil
	}

	name, err := resolution.AsString(event.Output)
	if err != nil {
		return fmt.Errorf("%w: not the name of a material", err)
	}
	material, err := r.fetchMaterial(ctx, name)
	if err != nil {
		return err
	}
	event.Material = material
	shared.SetMaterial(event.Equipment, material)
	return nil
}

// resolveJob attaches the event job: JOB resolvers overwrite the context
// with the string script result, other types read from it.
func (r *EventResolver) resolveJob(event *resolution.Event, shared *EquipmentContext) error {
	if event.Type != resolution.TypeJob {
		event.Job = shared.Job(event.Equipment)
		return nil
	}
	job, err := resolution.AsString(event.Output)
	if err != nil {
		return fmt.Errorf("%w: not a job identifier", err)
	}
	event.Job = job
	shared.SetJob(event.Equipment, job)
	return nil
}

func (r *EventResolver) processReason(ctx context.Context, event *resolution.Event) error {
	name, err := resolution.AsString(event.Output)
	if err != nil {
		return fmt.Errorf("%w: not a reason code", err)
	}

	if cached, ok := r.reasonCache.Load(name); ok {
		event.Reason = cached.(*plant.Reason)
		return nil
	}
	reason, err := r.reasons.ReasonByName(ctx, name)
	if err != nil {
		return fmt.Errorf("resolution: fetch reason %q: %w", name, err)
	}
	if reason == nil {
		return fmt.Errorf("%w: %q is not a valid reason", resolution.ErrNotFound, name)
	}
	r.reasonCache.Store(reason.Name, reason)
	event.Reason = reason
	return nil
}

func (r *EventResolver) fetchMaterial(ctx context.Context, name string) (*plant.Material, error) {
	if cached, ok := r.materialCache.Load(name); ok {
		return cached.(*plant.Material), nil
	}
	material, err := r.materials.MaterialByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolution: fetch material %q: %w", name, err)
	}
	if material == nil {
		return nil, fmt.Errorf("%w: material %q is not in the catalog", resolution.ErrNotFound, name)
	}
	r.materialCache.Store(material.Name, material)
	return material, nil
}

// processProductionCount converts the numeric script result into a quantity.
// The unit comes from the equipment/material association: run-rate unit for
// good and startup counts, reject unit for rejects. Without an association
// the quantity is amount-only.
func (r *EventResolver) processProductionCount(event *resolution.Event) error {
	amount, err := resolution.AsNumber(event.Output)
	if err != nil {
		return fmt.Errorf("%w: production count", err)
	}

	material := event.Material
	if material == nil {
		if em := event.Equipment.DefaultEquipmentMaterial(); em != nil {
			material = em.Material
			r.logger.Printf("resolution: produced material not defined for %s, assuming default %s",
				event.Equipment.Name, material.Name)
		}
	}

	var unit *uom.Unit
	if material != nil {
		if em := event.Equipment.EquipmentMaterialFor(material); em != nil {
			switch event.Type {
			case resolution.TypeProdReject:
				unit = em.RejectUnit
			default:
				unit = em.RunRate.Unit
			}
		}
	}

	quantity := uom.NewQuantity(amount, unit)
	event.Quantity = &quantity
	return nil
}
