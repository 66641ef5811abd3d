package localize

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/golang/geo/r2"
	"github.com/spf13/cast"
)

// Field names as they appear in requests and error reports.
const (
	FieldCenterX      = "centerX"
	FieldCenterY      = "centerY"
	FieldDiameter     = "diameter"
	FieldImageWidth   = "imageWidth"
	FieldImageHeight  = "imageHeight"
	FieldTrueDiameter = "true_diameter"
)

// Observation is a detected sphere in pixel units: its center and its apparent diameter.
type Observation struct {
	CenterX  float64 `json:"centerX"`
	CenterY  float64 `json:"centerY"`
	Diameter float64 `json:"diameter"`
}

// Center returns the observed center pixel.
func (o Observation) Center() r2.Point {
	return r2.Point{X: o.CenterX, Y: o.CenterY}
}

// Validate checks a typed observation. Fields are checked in the order centerX, centerY, diameter
// and only the first failure is reported.
func (o Observation) Validate() error {
	if !isFinite(o.CenterX) {
		return newInvalidObservationError(FieldCenterX, o.CenterX, "must be finite")
	}
	if !isFinite(o.CenterY) {
		return newInvalidObservationError(FieldCenterY, o.CenterY, "must be finite")
	}
	if !isFinite(o.Diameter) {
		return newInvalidObservationError(FieldDiameter, o.Diameter, "must be finite")
	}
	if o.Diameter <= 0 {
		return newInvalidObservationError(FieldDiameter, o.Diameter, "must be positive")
	}
	return nil
}

// ParseObservation validates untyped input, such as a decoded JSON body or a CSV row, and converts
// it into an Observation. It does not modify raw.
func ParseObservation(raw map[string]interface{}) (Observation, error) {
	var obs Observation
	var err error
	if obs.CenterX, err = numberField(raw, FieldCenterX); err != nil {
		return Observation{}, err
	}
	if obs.CenterY, err = numberField(raw, FieldCenterY); err != nil {
		return Observation{}, err
	}
	if obs.Diameter, err = numberField(raw, FieldDiameter); err != nil {
		return Observation{}, err
	}
	if err := obs.Validate(); err != nil {
		return Observation{}, err
	}
	return obs, nil
}

func numberField(raw map[string]interface{}, field string) (float64, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return 0, newInvalidObservationError(field, nil, "is required")
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, newInvalidObservationError(field, v, "must be a number")
	}
	if !isFinite(f) {
		return 0, newInvalidObservationError(field, f, "must be finite")
	}
	return f, nil
}

// optionalDimension reads an optional positive integer such as an image width.
func optionalDimension(raw map[string]interface{}, field string) (int, bool, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false, newInvalidObservationError(field, v, "must be a number")
	}
	if !isFinite(f) || f != math.Trunc(f) {
		return 0, false, newInvalidObservationError(field, v, "must be a whole number of pixels")
	}
	if f <= 0 || f > math.MaxInt32 {
		return 0, false, newInvalidObservationError(field, v, "must be positive")
	}
	return int(f), true, nil
}

// toFloat accepts the numeric types produced by encoding/json, strconv and Go literals.
// Booleans, strings and pointers are not numbers, although cast would coerce them.
func toFloat(v interface{}) (float64, bool) {
	if _, isNumber := v.(json.Number); !isNumber {
		switch reflect.ValueOf(v).Kind() {
		case reflect.Float32, reflect.Float64,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
