package handlers

import (
	"net/http"

	"github.com/benvon/smart-coach/internal/models"
	"github.com/gorilla/mux"
)

// ServiceCatalog reports on the registered AI services
type ServiceCatalog interface {
	Services() []models.AIServiceConfig
	Health(name string) (models.ServiceHealth, error)
	Metrics(name string) (models.ServiceMetrics, error)
}

// ServiceHandler exposes the router's service registry read-only
type ServiceHandler struct {
	catalog ServiceCatalog
}

// NewServiceHandler creates a new service handler
func NewServiceHandler(catalog ServiceCatalog) *ServiceHandler {
	return &ServiceHandler{catalog: catalog}
}

// RegisterRoutes registers service routes under the /services prefix
func (h *ServiceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.List).Methods("GET")
	r.HandleFunc("/{name}/health", h.Health).Methods("GET")
	r.HandleFunc("/{name}/metrics", h.Metrics).Methods("GET")
}

// List returns every registered service with its live status
func (h *ServiceHandler) List(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.Services())
}

// Health returns the recent-window status of one service
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.catalog.Health(mux.Vars(r)["name"])
	if err != nil {
		respondModelError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, health)
}

// Metrics returns the aggregated execution metrics of one service
func (h *ServiceHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.catalog.Metrics(mux.Vars(r)["name"])
	if err != nil {
		respondModelError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}
