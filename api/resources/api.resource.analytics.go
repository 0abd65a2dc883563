// FilePath: api/resources/api.resource.analytics.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/prajukk/backed-traffic/internal/errors"
	"github.com/prajukk/backed-traffic/internal/models"
	"github.com/prajukk/backed-traffic/internal/trafficservice"
)

// AnalyticsHandler handles analytics query endpoints
type AnalyticsHandler struct {
	service *trafficservice.TrafficService
}

func NewAnalyticsHandler(service *trafficservice.TrafficService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// @Summary Query analytics samples
// @Description Get analytics samples within a time range, defaulting to the trailing 24 hours
// @Tags analytics
// @Produce json
// @Param startDate query string false "Range start (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "Range end (RFC3339 or YYYY-MM-DD)"
// @Success 200 {array} models.AnalyticsSample
// @Router /analytics [get]
func (h *AnalyticsHandler) Query(w http.ResponseWriter, r *http.Request) {
	var timeRange models.AnalyticsRange
	if err := queryDecoder.Decode(&timeRange, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}

	samples, err := h.service.GetAnalytics(r.Context(), timeRange)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, samples)
}

// @Summary Query junction analytics
// @Description Get analytics samples for a single junction within a time range
// @Tags analytics
// @Produce json
// @Param id path string true "Junction (signal) ID"
// @Param startDate query string false "Range start (RFC3339 or YYYY-MM-DD)"
// @Param endDate query string false "Range end (RFC3339 or YYYY-MM-DD)"
// @Success 200 {array} models.AnalyticsSample
// @Failure 404 {object} errors.APIError
// @Router /analytics/junction/{id} [get]
func (h *AnalyticsHandler) QueryJunction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var timeRange models.AnalyticsRange
	if err := queryDecoder.Decode(&timeRange, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid query parameters", err))
		return
	}

	samples, err := h.service.GetJunctionAnalytics(r.Context(), id, timeRange)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, samples)
}

// @Summary Hourly congestion trend
// @Description Get per-hour averages over the trailing 24 hours
// @Tags analytics
// @Produce json
// @Success 200 {array} models.HourlyTrendBucket
// @Router /analytics/trend [get]
func (h *AnalyticsHandler) Trend(w http.ResponseWriter, r *http.Request) {
	trend, err := h.service.GetHourlyTrend(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, trend)
}
