// FilePath: api/resources/api.resource.cameras.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/prajukk/backed-traffic/api/middleware"
	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/trafficservice"
)

// CameraHandler handles camera-related API endpoints
type CameraHandler struct {
	service *trafficservice.TrafficService
}

func NewCameraHandler(service *trafficservice.TrafficService) *CameraHandler {
	return &CameraHandler{service: service}
}

// @Summary List cameras
// @Description Get all cameras with optional status and search filters
// @Tags cameras
// @Produce json
// @Param status query string false "Filter by status (online/offline/warning)"
// @Param search query string false "Case-insensitive name search"
// @Param offset query int false "Pagination offset"
// @Param limit query int false "Pagination limit (max 100)"
// @Success 200 {array} models.Camera
// @Router /cameras [get]
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	var filters models.DeviceFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}
	offset, limit := getPaginationParams(r)

	cameras, err := h.service.ListCameras(r.Context(), filters, offset, limit)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cameras)
}

// @Summary Get camera
// @Description Get a single camera by ID
// @Tags cameras
// @Produce json
// @Param id path string true "Camera ID"
// @Success 200 {object} models.Camera
// @Failure 404 {object} errors.APIError
// @Router /cameras/{id} [get]
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	camera, err := h.service.GetCamera(r.Context(), id)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, camera)
}

// @Summary Create camera
// @Description Register a new camera
// @Tags cameras
// @Accept json
// @Produce json
// @Param camera body models.Camera true "Camera to create"
// @Success 201 {object} models.Camera
// @Router /cameras [post]
func (h *CameraHandler) Create(w http.ResponseWriter, r *http.Request) {
	var camera models.Camera
	if err := decodeBody(r, &camera); err != nil {
		respondWithError(w, err)
		return
	}
	if camera.Name == "" {
		respondWithError(w, errors.NewValidationError("camera name is required", nil))
		return
	}

	if err := h.service.CreateCamera(r.Context(), &camera); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, camera)
}

// @Summary Update camera
// @Description Partially update a camera; only fields writable by the caller's role are applied
// @Tags cameras
// @Accept json
// @Produce json
// @Param id path string true "Camera ID"
// @Param camera body models.Camera true "Fields to update"
// @Success 200 {object} models.Camera
// @Failure 404 {object} errors.APIError
// @Router /cameras/{id} [put]
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch models.Camera
	if err := decodeBody(r, &patch); err != nil {
		respondWithError(w, err)
		return
	}

	camera, err := h.service.UpdateCamera(r.Context(), id, &patch, middleware.GetUserRoles(r.Context()))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, camera)
}

// @Summary Update camera settings
// @Description Replace the image settings of a camera
// @Tags cameras
// @Accept json
// @Produce json
// @Param id path string true "Camera ID"
// @Param settings body models.CameraSettings true "New settings"
// @Success 200 {object} models.Camera
// @Failure 404 {object} errors.APIError
// @Router /cameras/{id}/settings [put]
func (h *CameraHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var settings models.CameraSettings
	if err := decodeBody(r, &settings); err != nil {
		respondWithError(w, err)
		return
	}

	camera, err := h.service.UpdateCameraSettings(r.Context(), id, settings, middleware.GetUserRoles(r.Context()))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, camera)
}

// @Summary Delete camera
// @Description Delete a camera
// @Tags cameras
// @Param id path string true "Camera ID"
// @Success 204 "No Content"
// @Failure 404 {object} errors.APIError
// @Router /cameras/{id} [delete]
func (h *CameraHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.DeleteCamera(r.Context(), id); err != nil {
		respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
