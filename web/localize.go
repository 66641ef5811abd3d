package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/geo/r2"

	"go.viam.com/sphereloc/calibration"
	"go.viam.com/sphereloc/localize"
	"go.viam.com/sphereloc/store"
	"go.viam.com/sphereloc/transform"
)

const (
	maxLocalizeBodyBytes = 1 << 20
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 1000
)

type pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func newPixel(p r2.Point) pixel {
	return pixel{X: p.X, Y: p.Y}
}

type localizeResponse struct {
	Success           bool                    `json:"success"`
	ID                string                  `json:"id,omitempty"`
	Point             localize.LocalizedPoint `json:"point"`
	Units             string                  `json:"units"`
	UndistortedCenter pixel                   `json:"undistorted_center"`
	DepthScale        float64                 `json:"depth_scale"`
	FocalLength       float64                 `json:"focal_length"`
}

// handleLocalize localizes one observation. Recording the result is best effort: a store failure
// is logged and the localization is still returned.
func (s *Server) handleLocalize(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLocalizeBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil || raw == nil {
		writeErrorDetail(w, http.StatusBadRequest, kindBadRequest, "request body must be a JSON object")
		return
	}
	req, err := localize.ParseRequest(raw)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.engine.Localize(req)
	if err != nil {
		s.logger.Debugw("cannot localize", "error", err)
		writeError(w, err)
		return
	}

	resp := localizeResponse{
		Success:           true,
		Point:             res.Point,
		Units:             s.engine.Units(),
		UndistortedCenter: newPixel(res.UndistortedCenter),
		DepthScale:        res.DepthScale,
		FocalLength:       res.FocalLength,
	}
	if s.store != nil {
		id, err := s.store.Record(r.Context(), store.Record{
			Request:           req,
			Point:             res.Point,
			Units:             s.engine.Units(),
			CalibrationSource: res.CalibrationSource,
		})
		if err != nil {
			s.logger.Warnw("cannot record localization", "error", err)
		} else {
			resp.ID = id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type resolution struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

type calibrationResponse struct {
	Success               bool                    `json:"success"`
	Source                string                  `json:"source,omitempty"`
	LoadedAt              time.Time               `json:"loaded_at"`
	ReferenceResolution   resolution              `json:"reference_resolution"`
	CaptureResolution     resolution              `json:"capture_resolution"`
	ReferenceCameraMatrix [][]float64             `json:"reference_camera_matrix"`
	CameraMatrix          [][]float64             `json:"camera_matrix"`
	Distortion            *transform.BrownConrady `json:"distortion"`
	ObjectDiameter        float64                 `json:"object_diameter"`
	Units                 string                  `json:"units"`
}

func newCalibrationResponse(cal *calibration.Calibration) calibrationResponse {
	refW, refH := cal.ReferenceResolution()
	capW, capH := cal.CaptureResolution()
	scaled := cal.Model()
	dist := scaled.Distortion
	if dist == nil {
		dist = &transform.BrownConrady{}
	}
	return calibrationResponse{
		Success:               true,
		Source:                cal.Source(),
		LoadedAt:              cal.LoadedAt(),
		ReferenceResolution:   resolution{Width: refW, Height: refH},
		CaptureResolution:     resolution{Width: capW, Height: capH},
		ReferenceCameraMatrix: cal.Reference().Rows(),
		CameraMatrix:          scaled.Rows(),
		Distortion:            dist,
	}
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	cal := s.calibrations.Current()
	if cal == nil {
		writeError(w, transform.NewCalibrationError("no calibration loaded"))
		return
	}
	resp := newCalibrationResponse(cal)
	resp.ObjectDiameter = s.engine.TrueDiameter()
	resp.Units = s.engine.Units()
	writeJSON(w, http.StatusOK, resp)
}

type localizationsResponse struct {
	Success       bool           `json:"success"`
	Localizations []store.Record `json:"localizations"`
}

func (s *Server) handleLocalizations(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErrorDetail(w, http.StatusServiceUnavailable, kindUnavailable, "localization store is disabled")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeErrorDetail(w, http.StatusBadRequest, kindBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = n
	}
	records, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Errorw("cannot read localizations", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, localizationsResponse{Success: true, Localizations: records})
}
