// FilePath: api/resources/api.resource.dashboard.go
package resources

import (
	"net/http"

	"github.com/prajukk/backed-traffic/internal/trafficservice"
)

// DashboardHandler serves the aggregated dashboard views
type DashboardHandler struct {
	service *trafficservice.TrafficService
}

func NewDashboardHandler(service *trafficservice.TrafficService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// @Summary Dashboard overview
// @Description Get fleet-wide device and congestion counts
// @Tags dashboard
// @Produce json
// @Success 200 {object} models.DashboardOverview
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetOverview(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, overview)
}

// @Summary Congestion hotspots
// @Description Get locations currently reporting elevated congestion, worst first
// @Tags dashboard
// @Produce json
// @Success 200 {array} models.Hotspot
// @Router /dashboard/hotspots [get]
func (h *DashboardHandler) Hotspots(w http.ResponseWriter, r *http.Request) {
	hotspots, err := h.service.GetHotspots(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, hotspots)
}

// @Summary Alert zones
// @Description Get devices needing operator attention
// @Tags dashboard
// @Produce json
// @Success 200 {array} models.AlertZone
// @Router /dashboard/alert-zones [get]
func (h *DashboardHandler) AlertZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.service.GetAlertZones(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, zones)
}
