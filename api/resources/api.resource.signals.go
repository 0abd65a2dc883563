// FilePath: api/resources/api.resource.signals.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/prajukk/backed-traffic/api/middleware"
	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/trafficservice"
)

// SignalHandler handles traffic-signal API endpoints
type SignalHandler struct {
	service *trafficservice.TrafficService
}

func NewSignalHandler(service *trafficservice.TrafficService) *SignalHandler {
	return &SignalHandler{service: service}
}

// @Summary List signals
// @Description Get all traffic signals with optional status and search filters
// @Tags signals
// @Produce json
// @Param status query string false "Filter by status (online/offline/warning)"
// @Param search query string false "Case-insensitive name search"
// @Param offset query int false "Pagination offset"
// @Param limit query int false "Pagination limit (max 100)"
// @Success 200 {array} models.Signal
// @Router /signals [get]
func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	var filters models.DeviceFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}
	offset, limit := getPaginationParams(r)

	signals, err := h.service.ListSignals(r.Context(), filters, offset, limit)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, signals)
}

// @Summary Get signal
// @Description Get a single traffic signal by ID
// @Tags signals
// @Produce json
// @Param id path string true "Signal ID"
// @Success 200 {object} models.Signal
// @Failure 404 {object} errors.APIError
// @Router /signals/{id} [get]
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	signal, err := h.service.GetSignal(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, signal)
}

// @Summary Create signal
// @Description Register a new traffic signal
// @Tags signals
// @Accept json
// @Produce json
// @Param signal body models.Signal true "Signal to create"
// @Success 201 {object} models.Signal
// @Router /signals [post]
func (h *SignalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var signal models.Signal
	if err := decodeBody(r, &signal); err != nil {
		respondWithError(w, err)
		return
	}
	if signal.Name == "" {
		respondWithError(w, errors.NewValidationError("signal name is required", nil))
		return
	}

	if err := h.service.CreateSignal(r.Context(), &signal); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, signal)
}

// @Summary Update signal
// @Description Partially update a signal; only fields writable by the caller's role are applied
// @Tags signals
// @Accept json
// @Produce json
// @Param id path string true "Signal ID"
// @Param signal body models.Signal true "Fields to update"
// @Success 200 {object} models.Signal
// @Failure 404 {object} errors.APIError
// @Router /signals/{id} [put]
func (h *SignalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch models.Signal
	if err := decodeBody(r, &patch); err != nil {
		respondWithError(w, err)
		return
	}

	signal, err := h.service.UpdateSignal(r.Context(), id, &patch, middleware.GetUserRoles(r.Context()))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, signal)
}

// @Summary Update signal settings
// @Description Replace the timing settings of a signal
// @Tags signals
// @Accept json
// @Produce json
// @Param id path string true "Signal ID"
// @Param settings body models.SignalSettings true "New settings"
// @Success 200 {object} models.Signal
// @Failure 404 {object} errors.APIError
// @Router /signals/{id}/settings [put]
func (h *SignalHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var settings models.SignalSettings
	if err := decodeBody(r, &settings); err != nil {
		respondWithError(w, err)
		return
	}

	signal, err := h.service.UpdateSignalSettings(r.Context(), id, settings, middleware.GetUserRoles(r.Context()))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, signal)
}

// @Summary Delete signal
// @Description Delete a signal and its accumulated analytics samples
// @Tags signals
// @Param id path string true "Signal ID"
// @Success 204 "No Content"
// @Failure 404 {object} errors.APIError
// @Router /signals/{id} [delete]
func (h *SignalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.DeleteSignal(r.Context(), id); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
