package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	resolutionapp "oee-platform/internal/resolution/application"
)

// CacheClearHandler drops the resolver caches so master-data edits take
// effect without a restart.
type CacheClearHandler struct {
	resolver *resolutionapp.EventResolver
	logger   *log.Logger
}

// NewCacheClearHandler constructs the admin handler.
func NewCacheClearHandler(resolver *resolutionapp.EventResolver, logger *log.Logger) (*CacheClearHandler, error) {
	if resolver == nil {
		return nil, errors.New("ingest admin: nil resolver")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CacheClearHandler{resolver: resolver, logger: logger}, nil
}

func (h *CacheClearHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.resolver.ClearCache()
	h.logger.Printf("ingest admin: resolver caches cleared")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}
