// Package application glues the ingestion side together: a raw source
// reading is resolved into a domain event, converted into its typed history
// record, persisted, and announced on the event bus.
package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"oee-platform/internal/eventing"
	history "oee-platform/internal/history/domain"
	"oee-platform/internal/observability/metrics"
	resolutionapp "oee-platform/internal/resolution/application"
	resolution "oee-platform/internal/resolution/domain"
)

// Service handles one reading end to end. Safe for concurrent use; readings
// for the same equipment are serialized by the resolution engine.
type Service struct {
	resolver *resolutionapp.EventResolver
	shared   *resolutionapp.EquipmentContext
	records  history.RecordRepository
	configs  resolution.ConfigRepository
	bus      eventing.Bus
	logger   *log.Logger

	mu   sync.Mutex
	open map[string]*history.Record // equipment name -> open availability record
}

// NewService constructs the collector service. The bus is optional.
func NewService(
	resolver *resolutionapp.EventResolver,
	shared *resolutionapp.EquipmentContext,
	records history.RecordRepository,
	configs resolution.ConfigRepository,
	bus eventing.Bus,
	logger *log.Logger,
) (*Service, error) {
	if resolver == nil {
		return nil, errors.New("collector: nil resolver")
	}
	if shared == nil {
		return nil, errors.New("collector: nil equipment context")
	}
	if records == nil {
		return nil, errors.New("collector: nil record repository")
	}
	if configs == nil {
		return nil, errors.New("collector: nil config repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		resolver: resolver,
		shared:   shared,
		records:  records,
		configs:  configs,
		bus:      bus,
		logger:   logger,
		open:     make(map[string]*history.Record),
	}, nil
}

// HandleReading resolves and persists one (sourceId, value, timestamp)
// triple. The mutated resolver configuration is re-persisted even when the
// resolution fails downstream: the raw value was genuinely observed.
func (s *Service) HandleReading(ctx context.Context, sourceID string, value any, timestamp time.Time) (*resolution.Event, error) {
	cfg, err := s.resolver.Resolver(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	invokeStarted := time.Now()
	event, invokeErr := s.resolver.Invoke(ctx, cfg, s.shared, value, timestamp)
	result := metrics.ResultSuccess
	if invokeErr != nil {
		result = metrics.ResultError
	}
	metrics.ObserveResolution(string(cfg.Type), result, time.Since(invokeStarted))

	// Persist a snapshot: the live config's last value is mutated under the
	// equipment lock by concurrent resolutions for the same source.
	if saveErr := s.configs.SaveConfig(ctx, s.resolver.ConfigSnapshot(cfg)); saveErr != nil {
		s.logger.Printf("collector: persist resolver config %s: %v", cfg.SourceID, saveErr)
	}
	if invokeErr != nil {
		return nil, invokeErr
	}

	record, err := s.buildRecord(ctx, event)
	if err != nil {
		return nil, err
	}

	var recordID int64
	if record != nil {
		if err := s.records.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("collector: save record for source %s: %w", sourceID, err)
		}
		recordID = record.ID
	}

	if s.bus != nil {
		err := s.bus.Publish(ctx, EventResolved{
			SourceID:      event.SourceID,
			EquipmentName: event.Equipment.Name,
			Type:          event.Type,
			Timestamp:     event.Timestamp,
			Output:        event.Output,
			RecordID:      recordID,
		})
		if err != nil {
			s.logger.Printf("collector: publish resolved event for source %s: %v", sourceID, err)
		}
	}
	return event, nil
}

// buildRecord converts a resolved event into its persisted form.
// Availability events close the equipment's previous open downtime span;
// material, job and custom events only update running state.
func (s *Service) buildRecord(ctx context.Context, event *resolution.Event) (*history.Record, error) {
	switch {
	case event.Type.IsProduction():
		return history.NewProductionRecord(event)
	case event.Type == resolution.TypeAvailability:
		if err := s.closeOpenSpan(ctx, event); err != nil {
			return nil, err
		}
		record, err := history.NewAvailabilityRecord(event)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.open[event.Equipment.Name] = record
		s.mu.Unlock()
		return record, nil
	default:
		return nil, nil
	}
}

func (s *Service) closeOpenSpan(ctx context.Context, event *resolution.Event) error {
	s.mu.Lock()
	previous := s.open[event.Equipment.Name]
	delete(s.open, event.Equipment.Name)
	s.mu.Unlock()

	if previous == nil || !previous.IsOpen() {
		return nil
	}
	if err := previous.Close(event.Timestamp); err != nil {
		return err
	}
	if err := s.records.Save(ctx, previous); err != nil {
		return fmt.Errorf("collector: close downtime span %d: %w", previous.ID, err)
	}
	return nil
}
