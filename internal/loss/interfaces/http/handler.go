// Package http serves the loss calculation API: JSON breakdowns, Pareto
// rankings and downloadable reports.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	lossapp "oee-platform/internal/loss/application"
	loss "oee-platform/internal/loss/domain"
	"oee-platform/internal/loss/interfaces"
	"oee-platform/internal/observability/metrics"
	"oee-platform/internal/plant"
)

// Handler serves loss calculations over HTTP.
type Handler struct {
	calculator *lossapp.Calculator
	equipment  plant.EquipmentRepository
	materials  plant.MaterialRepository
	logger     *log.Logger
}

// NewHandler constructs the loss API handler.
func NewHandler(calculator *lossapp.Calculator, equipment plant.EquipmentRepository, materials plant.MaterialRepository, logger *log.Logger) (*Handler, error) {
	if calculator == nil {
		return nil, errors.New("loss api: nil calculator")
	}
	if equipment == nil {
		return nil, errors.New("loss api: nil equipment repository")
	}
	if materials == nil {
		return nil, errors.New("loss api: nil material repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{calculator: calculator, equipment: equipment, materials: materials, logger: logger}, nil
}

// Loss serves the full breakdown as JSON.
func (h *Handler) Loss(w http.ResponseWriter, r *http.Request) {
	result, status, err := h.calculate(r)
	if err != nil {
		h.fail(w, status, err)
		return
	}
	writeJSON(w, lossResponse(result))
}

// Pareto serves the reason ranking for one loss category.
func (h *Handler) Pareto(w http.ResponseWriter, r *http.Request) {
	category := plant.TimeLoss(r.URL.Query().Get("category"))
	if !category.IsValid() {
		h.fail(w, http.StatusBadRequest, fmt.Errorf("loss api: unknown category %q", category))
		return
	}
	result, status, err := h.calculate(r)
	if err != nil {
		h.fail(w, status, err)
		return
	}

	items := loss.ParetoData(result, category)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Lost == items[j].Lost {
			return items[i].Label < items[j].Label
		}
		return items[i].Lost > items[j].Lost
	})

	type paretoItem struct {
		Reason      string  `json:"reason"`
		LostSeconds float64 `json:"lostSeconds"`
	}
	out := make([]paretoItem, 0, len(items))
	for _, item := range items {
		out = append(out, paretoItem{Reason: item.Label, LostSeconds: item.Lost.Seconds()})
	}
	writeJSON(w, map[string]any{"category": string(category), "items": out})
}

// ExportPDF serves the breakdown as a PDF download.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf", interfaces.BuildLossPDF)
}

// ExportXLSX serves the breakdown as an XLSX download.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		interfaces.BuildLossXLSX)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, format, contentType string, build func(*loss.EquipmentLoss) ([]byte, error)) {
	started := time.Now()
	result, status, err := h.calculate(r)
	if err != nil {
		metrics.ObserveLossExport(format, metrics.ResultError, time.Since(started))
		h.fail(w, status, err)
		return
	}
	payload, err := build(result)
	if err != nil {
		metrics.ObserveLossExport(format, metrics.ResultError, time.Since(started))
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	metrics.ObserveLossExport(format, metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "loss-"+result.Equipment.Name+"."+format))
	_, _ = w.Write(payload)
}

// calculate parses the common query parameters and runs the calculation.
func (h *Handler) calculate(r *http.Request) (*loss.EquipmentLoss, int, error) {
	started := time.Now()
	query := r.URL.Query()

	equipmentName := query.Get("equipment")
	materialName := query.Get("material")
	if equipmentName == "" || materialName == "" {
		return nil, http.StatusBadRequest, errors.New("loss api: equipment and material are required")
	}
	from, err := time.Parse(time.RFC3339, query.Get("from"))
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("loss api: invalid from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, query.Get("to"))
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("loss api: invalid to: %w", err)
	}

	equipment, err := h.equipment.EquipmentByName(r.Context(), equipmentName)
	if err != nil {
		return nil, http.StatusNotFound, fmt.Errorf("loss api: equipment %q: %w", equipmentName, err)
	}
	material, err := h.materials.MaterialByName(r.Context(), materialName)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if material == nil {
		return nil, http.StatusNotFound, fmt.Errorf("loss api: material %q: %w", materialName, plant.ErrNotFound)
	}

	result, err := h.calculator.CalculateLoss(r.Context(), equipment, material, from, to)
	if err != nil {
		metrics.ObserveLossCalculation(metrics.ResultError, time.Since(started))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, lossapp.ErrInvalidInterval):
			status = http.StatusBadRequest
		case errors.Is(err, plant.ErrNoSchedule), errors.Is(err, plant.ErrNoRunRate):
			status = http.StatusConflict
		}
		return nil, status, err
	}
	metrics.ObserveLossCalculation(metrics.ResultSuccess, time.Since(started))
	return result, http.StatusOK, nil
}

func (h *Handler) fail(w http.ResponseWriter, status int, err error) {
	h.logger.Printf("loss api: %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// lossResponse flattens the aggregate for JSON consumers.
func lossResponse(result *loss.EquipmentLoss) map[string]any {
	start, end, _ := result.Window()

	losses := make(map[string]float64)
	for category, d := range result.Losses() {
		losses[string(category)] = d.Seconds()
	}
	reasons := make(map[string]map[string]float64)
	for _, category := range plant.AvailabilityLosses() {
		byReason := result.ReasonLosses(category)
		if len(byReason) == 0 {
			continue
		}
		out := make(map[string]float64, len(byReason))
		for name, d := range byReason {
			out[name] = d.Seconds()
		}
		reasons[string(category)] = out
	}

	return map[string]any{
		"equipment":    result.Equipment.Name,
		"material":     result.Material.Name,
		"windowStart":  start.Format(time.RFC3339),
		"windowEnd":    end.Format(time.RFC3339),
		"good":         result.GoodQuantity().Float(),
		"reject":       result.RejectQuantity().Float(),
		"startup":      result.StartupQuantity().Float(),
		"losses":       losses,
		"reasonLosses": reasons,
		"availability": result.Availability(),
		"performance":  result.Performance(),
		"quality":      result.Quality(),
		"oee":          result.OEE(),
	}
}
