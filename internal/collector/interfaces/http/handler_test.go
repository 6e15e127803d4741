package http

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"oee-platform/internal/collector/application"
	"oee-platform/internal/eventing"
	historymemory "oee-platform/internal/history/infrastructure/memory"
	"oee-platform/internal/masterdata/infrastructure/memory"
	"oee-platform/internal/plant"
	resolutionapp "oee-platform/internal/resolution/application"
	resolution "oee-platform/internal/resolution/domain"
	"oee-platform/internal/resolution/scripting"
	"oee-platform/internal/uom"
)

func newIngestHandler(t *testing.T) *IngestHandler {
	t.Helper()
	registry := uom.DefaultRegistry()
	each, _ := registry.Find("ea")

	equipment, err := plant.NewEquipment("line-1", nil)
	if err != nil {
		t.Fatalf("new equipment: %v", err)
	}
	bottle := &plant.Material{Name: "BTL-500"}
	err = equipment.SetEquipmentMaterial(&plant.EquipmentMaterial{
		Material:   bottle,
		RunRate:    uom.NewQuantity(5000, each),
		RejectUnit: each,
	})
	if err != nil {
		t.Fatalf("set equipment material: %v", err)
	}
	equipment.SetDefaultMaterial(bottle.Name)

	catalog := memory.NewCatalog()
	catalog.AddMaterial(bottle)
	catalog.AddReason(&plant.Reason{Name: "JAM", LossCategory: plant.LossUnplannedDowntime})
	catalog.AddResolverConfig(&resolution.Config{
		SourceID: "plc.good", Type: resolution.TypeProdGood, Equipment: equipment, Script: "currentValue",
	})
	catalog.AddResolverConfig(&resolution.Config{
		SourceID: "plc.state", Type: resolution.TypeAvailability, Equipment: equipment, Script: "currentValue",
	})

	logger := log.New(io.Discard, "", 0)
	resolver, err := resolutionapp.NewEventResolver(catalog, catalog, catalog, scripting.NewGojaEngine(), logger)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	service, err := application.NewService(
		resolver, resolutionapp.NewEquipmentContext(),
		historymemory.NewRecordRepository(), catalog, eventing.NewInMemoryBus(), logger,
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewIngestHandler(service, logger)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func post(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ingest/readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIngestSingleReading(t *testing.T) {
	handler := newIngestHandler(t)
	rec := post(t, handler, `{"sourceId":"plc.good","value":12,"ts":1767340800}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Resolved []struct {
			SourceID  string `json:"sourceId"`
			Equipment string `json:"equipment"`
			Type      string `json:"type"`
		} `json:"resolved"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Resolved) != 1 {
		t.Fatalf("expected 1 resolved, got %d", len(resp.Resolved))
	}
	if resp.Resolved[0].Equipment != "line-1" || resp.Resolved[0].Type != "PROD_GOOD" {
		t.Fatalf("unexpected resolved entry %+v", resp.Resolved[0])
	}
}

func TestIngestBatch(t *testing.T) {
	handler := newIngestHandler(t)
	rec := post(t, handler, `{"readings":[
		{"sourceId":"plc.good","value":12,"ts":1767340800},
		{"sourceId":"plc.state","value":"JAM","ts":1767340860}
	]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Resolved []json.RawMessage `json:"resolved"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Resolved) != 2 {
		t.Fatalf("expected 2 resolved, got %d", len(resp.Resolved))
	}
}

func TestIngestAcceptsMillisecondTimestamps(t *testing.T) {
	handler := newIngestHandler(t)
	rec := post(t, handler, `{"sourceId":"plc.good","value":1,"ts":1767340800000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIngestRejectsNonPost(t *testing.T) {
	handler := newIngestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ingest/readings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestIngestRejectsInvalidJSON(t *testing.T) {
	handler := newIngestHandler(t)
	if rec := post(t, handler, `{not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestIngestRejectsNullValue(t *testing.T) {
	handler := newIngestHandler(t)
	if rec := post(t, handler, `{"sourceId":"plc.good","value":null,"ts":1767340800}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestIngestUnknownSourceReportsProgress(t *testing.T) {
	handler := newIngestHandler(t)
	rec := post(t, handler, `{"readings":[
		{"sourceId":"plc.good","value":12,"ts":1767340800},
		{"sourceId":"nope","value":1,"ts":1767340860}
	]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error    string            `json:"error"`
		Resolved []json.RawMessage `json:"resolved"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == "" || len(resp.Resolved) != 1 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestIngestBadScriptResultType(t *testing.T) {
	handler := newIngestHandler(t)
	// Availability resolvers must yield a reason name, not a number.
	if rec := post(t, handler, `{"sourceId":"plc.state","value":7,"ts":1767340800}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", rec.Code)
	}
}
