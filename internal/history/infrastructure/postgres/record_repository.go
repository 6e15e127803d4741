package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	history "oee-platform/internal/history/domain"
	"oee-platform/internal/plant"
	"oee-platform/internal/uom"
)

const (
	defaultProductionTable   = "oee_production"
	defaultAvailabilityTable = "oee_availability"
)

// RecordRepository is the Postgres implementation of the history store.
// Production and availability records live in separate tables sharing the
// base columns, mirroring the record variants.
type RecordRepository struct {
	db                *sql.DB
	units             *uom.Registry
	productionTable   string
	availabilityTable string
}

// Option configures the repository.
type Option func(*RecordRepository)

// WithTables overrides the default table names.
func WithTables(production, availability string) Option {
	return func(repo *RecordRepository) {
		if production != "" {
			repo.productionTable = production
		}
		if availability != "" {
			repo.availabilityTable = availability
		}
	}
}

// NewRecordRepository constructs the repository. The unit registry rebuilds
// quantity units from their persisted symbols.
func NewRecordRepository(db *sql.DB, units *uom.Registry, opts ...Option) (*RecordRepository, error) {
	if db == nil {
		return nil, errors.New("history repo: nil db")
	}
	if units == nil {
		units = uom.DefaultRegistry()
	}
	repo := &RecordRepository{
		db:                db,
		units:             units,
		productionTable:   defaultProductionTable,
		availabilityTable: defaultAvailabilityTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Save inserts a new record or updates the mutable fields (end time and
// back-filled lost time) of a persisted one.
func (r *RecordRepository) Save(ctx context.Context, record *history.Record) error {
	if record == nil {
		return history.ErrNilRecord
	}
	switch record.Kind {
	case history.KindProduction:
		return r.saveProduction(ctx, record)
	case history.KindAvailability:
		return r.saveAvailability(ctx, record)
	default:
		return fmt.Errorf("history repo: unknown record kind %q", record.Kind)
	}
}

func (r *RecordRepository) saveProduction(ctx context.Context, record *history.Record) error {
	if record.ID != 0 {
		query := fmt.Sprintf(`
UPDATE %s
SET end_time = $1, lost_time_seconds = $2
WHERE id = $3`, r.productionTable)
		_, err := r.db.ExecContext(ctx, query, nullTime(record.End), record.LostTime.Seconds(), record.ID)
		return err
	}

	var amount float64
	var unitSymbol sql.NullString
	if record.Quantity != nil {
		amount = record.Quantity.Float()
		if record.Quantity.Unit != nil {
			unitSymbol = sql.NullString{String: record.Quantity.Unit.Symbol, Valid: true}
		}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	equipment, source_id, material, job,
	start_time, end_time, lost_time_seconds,
	production_type, amount, unit_symbol
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`, r.productionTable)

	return r.db.QueryRowContext(ctx, query,
		record.EquipmentName,
		record.SourceID,
		record.MaterialName,
		record.Job,
		record.Start,
		nullTime(record.End),
		record.LostTime.Seconds(),
		string(record.ProductionType),
		amount,
		unitSymbol,
	).Scan(&record.ID)
}

func (r *RecordRepository) saveAvailability(ctx context.Context, record *history.Record) error {
	if record.Reason == nil {
		return errors.New("history repo: availability record without a reason")
	}
	if record.ID != 0 {
		query := fmt.Sprintf(`
UPDATE %s
SET end_time = $1, duration_seconds = $2, lost_time_seconds = $3
WHERE id = $4`, r.availabilityTable)
		_, err := r.db.ExecContext(ctx, query,
			nullTime(record.End), record.Duration.Seconds(), record.LostTime.Seconds(), record.ID)
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	equipment, source_id, material, job,
	start_time, end_time, lost_time_seconds,
	reason_name, reason_category, duration_seconds
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`, r.availabilityTable)

	return r.db.QueryRowContext(ctx, query,
		record.EquipmentName,
		record.SourceID,
		record.MaterialName,
		record.Job,
		record.Start,
		nullTime(record.End),
		record.LostTime.Seconds(),
		record.Reason.Name,
		string(record.Reason.LossCategory),
		record.Duration.Seconds(),
	).Scan(&record.ID)
}

// ProductionRecords fetches production records overlapping [from, to].
func (r *RecordRepository) ProductionRecords(ctx context.Context, equipmentName string, from, to time.Time) ([]*history.Record, error) {
	query := fmt.Sprintf(`
SELECT id, equipment, source_id, material, job,
	start_time, end_time, lost_time_seconds,
	production_type, amount, unit_symbol
FROM %s
WHERE equipment = $1
	AND start_time <= $3
	AND (end_time IS NULL OR end_time >= $2)
ORDER BY start_time ASC`, r.productionTable)

	rows, err := r.db.QueryContext(ctx, query, equipmentName, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*history.Record
	for rows.Next() {
		record, err := r.scanProduction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// AvailabilityRecords fetches availability records overlapping [from, to],
// ascending by start time.
func (r *RecordRepository) AvailabilityRecords(ctx context.Context, equipmentName string, from, to time.Time) ([]*history.Record, error) {
	query := fmt.Sprintf(`
SELECT id, equipment, source_id, material, job,
	start_time, end_time, lost_time_seconds,
	reason_name, reason_category, duration_seconds
FROM %s
WHERE equipment = $1
	AND start_time <= $3
	AND (end_time IS NULL OR end_time >= $2)
ORDER BY start_time ASC`, r.availabilityTable)

	rows, err := r.db.QueryContext(ctx, query, equipmentName, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*history.Record
	for rows.Next() {
		record, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func (r *RecordRepository) scanProduction(rows *sql.Rows) (*history.Record, error) {
	var (
		record         history.Record
		end            sql.NullTime
		lostSeconds    float64
		productionType string
		amount         float64
		unitSymbol     sql.NullString
	)
	if err := rows.Scan(
		&record.ID, &record.EquipmentName, &record.SourceID, &record.MaterialName, &record.Job,
		&record.Start, &end, &lostSeconds,
		&productionType, &amount, &unitSymbol,
	); err != nil {
		return nil, err
	}

	record.Kind = history.KindProduction
	record.ProductionType = history.ProductionType(productionType)
	record.LostTime = secondsToDuration(lostSeconds)
	if end.Valid {
		endTime := end.Time
		record.End = &endTime
	}

	var unit *uom.Unit
	if unitSymbol.Valid {
		found, err := r.units.Find(unitSymbol.String)
		if err != nil {
			return nil, fmt.Errorf("history repo: record %d: %w", record.ID, err)
		}
		unit = found
	}
	quantity := uom.NewQuantity(amount, unit)
	record.Quantity = &quantity
	return &record, nil
}

func scanAvailability(rows *sql.Rows) (*history.Record, error) {
	var (
		record          history.Record
		end             sql.NullTime
		lostSeconds     float64
		reasonName      string
		reasonCategory  string
		durationSeconds float64
	)
	if err := rows.Scan(
		&record.ID, &record.EquipmentName, &record.SourceID, &record.MaterialName, &record.Job,
		&record.Start, &end, &lostSeconds,
		&reasonName, &reasonCategory, &durationSeconds,
	); err != nil {
		return nil, err
	}

	record.Kind = history.KindAvailability
	record.LostTime = secondsToDuration(lostSeconds)
	record.Duration = secondsToDuration(durationSeconds)
	record.Reason = &plant.Reason{Name: reasonName, LossCategory: plant.TimeLoss(reasonCategory)}
	if end.Valid {
		endTime := end.Time
		record.End = &endTime
	}
	return &record, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
