// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/errors"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return reflect.ValueOf(t)
		}
		if t, err := time.Parse("2006-01-02", value); err == nil {
			return reflect.ValueOf(t)
		}
		return reflect.Value{}
	})
	return d
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		nuts.L.Errorf("[API] Failed to marshal response: %v", err)
		respondWithError(w, errors.NewInternalError("failed to marshal response", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	apiErr := errors.AsAPIError(err)
	if apiErr.Code >= http.StatusInternalServerError {
		nuts.L.Errorf("[API] %s: %s", apiErr.Type, apiErr.Error())
	}
	respondWithJSON(w, apiErr.Code, apiErr)
}

func getPaginationParams(r *http.Request) (offset, limit int) {
	offset = 0
	limit = defaultPageLimit

	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewValidationError("invalid request body", err)
	}
	return nil
}
