// Package postgres persists plant master data that changes at runtime:
// materials, downtime reason definitions and resolver configurations with
// their last observed raw values. The equipment hierarchy itself stays
// declarative and is resolved through an EquipmentRepository.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"oee-platform/internal/plant"
	resolution "oee-platform/internal/resolution/domain"
)

const (
	defaultMaterialTable = "oee_materials"
	defaultReasonTable   = "oee_reasons"
	defaultResolverTable = "oee_resolvers"
)

// Catalog is the Postgres implementation of the master-data repositories.
type Catalog struct {
	db        *sql.DB
	equipment plant.EquipmentRepository

	materialTable string
	reasonTable   string
	resolverTable string
}

// Option configures the catalog.
type Option func(*Catalog)

// WithTables overrides the default table names; empty strings keep defaults.
func WithTables(materials, reasons, resolvers string) Option {
	return func(c *Catalog) {
		if materials != "" {
			c.materialTable = materials
		}
		if reasons != "" {
			c.reasonTable = reasons
		}
		if resolvers != "" {
			c.resolverTable = resolvers
		}
	}
}

// NewCatalog constructs the catalog. Resolver rows reference equipment by
// name; the equipment repository turns those names back into hierarchy nodes.
func NewCatalog(db *sql.DB, equipment plant.EquipmentRepository, opts ...Option) (*Catalog, error) {
	if db == nil {
		return nil, errors.New("masterdata repo: nil db")
	}
	if equipment == nil {
		return nil, errors.New("masterdata repo: nil equipment repository")
	}
	c := &Catalog{
		db:            db,
		equipment:     equipment,
		materialTable: defaultMaterialTable,
		reasonTable:   defaultReasonTable,
		resolverTable: defaultResolverTable,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MaterialByName resolves a material, (nil, nil) if absent.
func (c *Catalog) MaterialByName(ctx context.Context, name string) (*plant.Material, error) {
	query := fmt.Sprintf(`
SELECT name, description, category
FROM %s
WHERE name = $1`, c.materialTable)

	var material plant.Material
	err := c.db.QueryRowContext(ctx, query, name).Scan(
		&material.Name, &material.Description, &material.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &material, nil
}

// ReasonByName resolves a reason with its ancestor chain, (nil, nil) if
// absent. A broken parent reference fails the lookup rather than returning a
// truncated chain.
func (c *Catalog) ReasonByName(ctx context.Context, name string) (*plant.Reason, error) {
	query := fmt.Sprintf(`
SELECT name, description, parent_name, loss_category
FROM %s
WHERE name = $1`, c.reasonTable)

	root, parentName, err := c.scanReason(ctx, query, name)
	if err != nil || root == nil {
		return root, err
	}

	node := root
	for parentName != "" {
		parent, next, err := c.scanReason(ctx, query, parentName)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("masterdata repo: reason %q references missing parent %q", node.Name, parentName)
		}
		node.Parent = parent
		node, parentName = parent, next
	}
	return root, nil
}

func (c *Catalog) scanReason(ctx context.Context, query, name string) (*plant.Reason, string, error) {
	var (
		reason   plant.Reason
		parent   sql.NullString
		category string
	)
	err := c.db.QueryRowContext(ctx, query, name).Scan(
		&reason.Name, &reason.Description, &parent, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	reason.LossCategory = plant.TimeLoss(category)
	return &reason, parent.String, nil
}

// FetchConfigs loads every resolver configuration, rebuilding the equipment
// reference and the persisted last raw value.
func (c *Catalog) FetchConfigs(ctx context.Context) ([]*resolution.Config, error) {
	query := fmt.Sprintf(`
SELECT source_id, resolver_type, equipment, script, last_value_numeric, last_value_text
FROM %s
ORDER BY source_id ASC`, c.resolverTable)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*resolution.Config
	for rows.Next() {
		var (
			cfg           resolution.Config
			equipmentName string
			lastNumeric   sql.NullFloat64
			lastText      sql.NullString
			resolverType  string
		)
		if err := rows.Scan(&cfg.SourceID, &resolverType, &equipmentName, &cfg.Script, &lastNumeric, &lastText); err != nil {
			return nil, err
		}
		cfg.Type = resolution.Type(resolverType)

		equipment, err := c.equipment.EquipmentByName(ctx, equipmentName)
		if err != nil {
			return nil, fmt.Errorf("masterdata repo: resolver %s: equipment %q: %w", cfg.SourceID, equipmentName, err)
		}
		cfg.Equipment = equipment

		switch {
		case lastNumeric.Valid:
			cfg.LastValue = lastNumeric.Float64
		case lastText.Valid:
			cfg.LastValue = lastText.String
		}
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// SaveConfig upserts a resolver configuration by source id. The last raw
// value lands in the numeric or the text column depending on its kind.
func (c *Catalog) SaveConfig(ctx context.Context, cfg *resolution.Config) error {
	if cfg == nil {
		return resolution.ErrConfiguration
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lastNumeric, lastText := splitLastValue(cfg.LastValue)
	query := fmt.Sprintf(`
INSERT INTO %s (source_id, resolver_type, equipment, script, last_value_numeric, last_value_text)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (source_id) DO UPDATE SET
	resolver_type = EXCLUDED.resolver_type,
	equipment = EXCLUDED.equipment,
	script = EXCLUDED.script,
	last_value_numeric = EXCLUDED.last_value_numeric,
	last_value_text = EXCLUDED.last_value_text`, c.resolverTable)

	_, err := c.db.ExecContext(ctx, query,
		cfg.SourceID, string(cfg.Type), cfg.Equipment.Name, cfg.Script, lastNumeric, lastText)
	return err
}

func splitLastValue(value any) (sql.NullFloat64, sql.NullString) {
	switch v := value.(type) {
	case nil:
		return sql.NullFloat64{}, sql.NullString{}
	case float64:
		return sql.NullFloat64{Float64: v, Valid: true}, sql.NullString{}
	case float32:
		return sql.NullFloat64{Float64: float64(v), Valid: true}, sql.NullString{}
	case int:
		return sql.NullFloat64{Float64: float64(v), Valid: true}, sql.NullString{}
	case int32:
		return sql.NullFloat64{Float64: float64(v), Valid: true}, sql.NullString{}
	case int64:
		return sql.NullFloat64{Float64: float64(v), Valid: true}, sql.NullString{}
	case string:
		return sql.NullFloat64{}, sql.NullString{String: v, Valid: true}
	default:
		return sql.NullFloat64{}, sql.NullString{String: fmt.Sprint(v), Valid: true}
	}
}
