package web

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/transform"
)

// Error kinds reported to clients.
const (
	kindInvalidObservation = "invalid_observation"
	kindCalibration        = "calibration"
	kindGeometry           = "geometry"
	kindBadRequest         = "bad_request"
	kindUnavailable        = "unavailable"
	kindInternal           = "internal"
)

type errorDetail struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type errorResponse struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

// classify maps an error onto its HTTP status and client facing kind.
func classify(err error) (int, errorDetail) {
	detail := errorDetail{Message: err.Error()}
	var invalid *localize.InvalidObservationError
	switch {
	case errors.As(err, &invalid):
		detail.Kind = kindInvalidObservation
		detail.Field = invalid.Field
		return http.StatusBadRequest, detail
	case errors.Is(err, transform.ErrCalibration):
		detail.Kind = kindCalibration
		return http.StatusInternalServerError, detail
	case errors.Is(err, transform.ErrGeometry):
		detail.Kind = kindGeometry
		return http.StatusUnprocessableEntity, detail
	default:
		detail.Kind = kindInternal
		return http.StatusInternalServerError, detail
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	utils.UncheckedError(json.NewEncoder(w).Encode(body))
}

func writeError(w http.ResponseWriter, err error) {
	status, detail := classify(err)
	writeJSON(w, status, errorResponse{Error: detail})
}

func writeErrorDetail(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Kind: kind, Message: message}})
}
