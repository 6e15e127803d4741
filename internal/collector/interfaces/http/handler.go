// Package http is the ingest boundary: data sources post raw readings here
// and the collector turns them into resolved events.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"oee-platform/internal/collector/application"
	"oee-platform/internal/observability/metrics"
	resolution "oee-platform/internal/resolution/domain"
)

// IngestHandler accepts raw readings, one per request or batched.
type IngestHandler struct {
	service *application.Service
	logger  *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service *application.Service, logger *log.Logger) (*IngestHandler, error) {
	if service == nil {
		return nil, errors.New("ingest: nil collector service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{service: service, logger: logger}, nil
}

// ServeHTTP resolves every posted reading. Readings are processed in order;
// the first failure aborts the batch and reports how far it got.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Printf("ingest: read body error: %v", err)
		metrics.IncIngestError("read_body")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Printf("ingest: decode error: %v", err)
		metrics.IncIngestError("decode")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	readings, err := req.toReadings()
	if err != nil {
		h.logger.Printf("ingest: invalid payload: %v", err)
		metrics.IncIngestError("payload")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	resolved := make([]resolvedReading, 0, len(readings))
	for _, reading := range readings {
		event, err := h.service.HandleReading(r.Context(), reading.SourceID, reading.Value, reading.Timestamp)
		if err != nil {
			h.logger.Printf("ingest: resolve source %s: %v", reading.SourceID, err)
			metrics.IncIngestError("resolve")
			metrics.ObserveIngest(metrics.ResultError, time.Since(started))
			writeResolveError(w, err, resolved)
			return
		}
		resolved = append(resolved, resolvedReading{
			SourceID:  event.SourceID,
			Equipment: event.Equipment.Name,
			Type:      string(event.Type),
		})
	}

	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"resolved": resolved})
}

func writeResolveError(w http.ResponseWriter, err error, resolved []resolvedReading) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, resolution.ErrNotFound), errors.Is(err, resolution.ErrConfiguration):
		status = http.StatusNotFound
	case errors.Is(err, resolution.ErrBadResultType), errors.Is(err, resolution.ErrScript):
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    err.Error(),
		"resolved": resolved,
	})
}

type resolvedReading struct {
	SourceID  string `json:"sourceId"`
	Equipment string `json:"equipment"`
	Type      string `json:"type"`
}

type ingestRequest struct {
	SourceID string          `json:"sourceId"`
	Value    json.RawMessage `json:"value"`
	TS       int64           `json:"ts"`
	Readings []ingestReading `json:"readings"`
}

type ingestReading struct {
	SourceID string          `json:"sourceId"`
	Value    json.RawMessage `json:"value"`
	TS       int64           `json:"ts"`
}

type reading struct {
	SourceID  string
	Value     any
	Timestamp time.Time
}

func (r ingestRequest) toReadings() ([]reading, error) {
	items := r.Readings
	if len(items) == 0 && r.SourceID != "" {
		items = []ingestReading{{SourceID: r.SourceID, Value: r.Value, TS: r.TS}}
	}
	if len(items) == 0 {
		return nil, errors.New("no readings")
	}

	readings := make([]reading, 0, len(items))
	for _, item := range items {
		if item.SourceID == "" {
			return nil, errors.New("missing sourceId")
		}
		value, err := decodeValue(item.Value)
		if err != nil {
			return nil, err
		}
		ts, err := parseTimestamp(item.TS)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading{SourceID: item.SourceID, Value: value, Timestamp: ts})
	}
	return readings, nil
}

// decodeValue keeps the reading's JSON kind: numbers stay float64, strings
// stay strings, booleans stay bool.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing value")
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errors.New("invalid value")
	}
	if value == nil {
		return nil, errors.New("null value")
	}
	return value, nil
}

func parseTimestamp(value int64) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, errors.New("invalid ts")
	}
	// Accept milliseconds or seconds.
	if value > 1_000_000_000_000 {
		return time.UnixMilli(value).UTC(), nil
	}
	return time.Unix(value, 0).UTC(), nil
}
