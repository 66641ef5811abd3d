package localize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestParseObservation(t *testing.T) {
	obs, err := ParseObservation(map[string]interface{}{"centerX": 1500.0, "centerY": 1900, "diameter": json.Number("300")})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs, test.ShouldResemble, Observation{CenterX: 1500, CenterY: 1900, Diameter: 300})

	obs, err = ParseObservation(map[string]interface{}{"centerX": uint16(12), "centerY": int64(-3), "diameter": float32(2.5)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, obs, test.ShouldResemble, Observation{CenterX: 12, CenterY: -3, Diameter: 2.5})

	for _, tc := range []struct {
		name   string
		raw    map[string]interface{}
		field  string
		reason string
	}{
		{"missing centerX", map[string]interface{}{"centerY": 1.0, "diameter": 10.0}, FieldCenterX, "is required"},
		{"null centerX", map[string]interface{}{"centerX": nil, "centerY": 1.0, "diameter": 10.0}, FieldCenterX, "is required"},
		{"string centerY", map[string]interface{}{"centerX": 1.0, "centerY": "1", "diameter": 10.0}, FieldCenterY, "must be a number"},
		{"bool diameter", map[string]interface{}{"centerX": 1.0, "centerY": 1.0, "diameter": true}, FieldDiameter, "must be a number"},
		{"zero diameter", map[string]interface{}{"centerX": 1.0, "centerY": 1.0, "diameter": 0.0}, FieldDiameter, "must be positive"},
		{"negative diameter", map[string]interface{}{"centerX": 1.0, "centerY": 1.0, "diameter": -5}, FieldDiameter, "must be positive"},
		{"nan centerX", map[string]interface{}{"centerX": math.NaN(), "centerY": 1.0, "diameter": 10.0}, FieldCenterX, "must be finite"},
		{"inf diameter", map[string]interface{}{"centerX": 1.0, "centerY": 1.0, "diameter": math.Inf(1)}, FieldDiameter, "must be finite"},
		{"malformed json number", map[string]interface{}{"centerX": json.Number("1x"), "centerY": 1.0, "diameter": 10.0}, FieldCenterX, "must be a number"},
		{"pointer diameter", map[string]interface{}{"centerX": 1.0, "centerY": 1.0, "diameter": new(float64)}, FieldDiameter, "must be a number"},
		{"first failure wins", map[string]interface{}{"diameter": -1.0}, FieldCenterX, "is required"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseObservation(tc.raw)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrInvalidObservation), test.ShouldBeTrue)
			var invalid *InvalidObservationError
			test.That(t, errors.As(err, &invalid), test.ShouldBeTrue)
			test.That(t, invalid.Field, test.ShouldEqual, tc.field)
			test.That(t, invalid.Reason, test.ShouldEqual, tc.reason)
		})
	}
}

func TestParseObservationIsPure(t *testing.T) {
	raw := map[string]interface{}{"centerX": 10.0, "centerY": 20.0, "diameter": 0.0}
	_, err1 := ParseObservation(raw)
	_, err2 := ParseObservation(raw)
	test.That(t, err1, test.ShouldResemble, err2)
	test.That(t, raw, test.ShouldResemble, map[string]interface{}{"centerX": 10.0, "centerY": 20.0, "diameter": 0.0})
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest(map[string]interface{}{
		"centerX": 10.0, "centerY": 20.0, "diameter": 5.0, "imageWidth": 1500.0, "imageHeight": 2000.0,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, req.ImageWidth, test.ShouldEqual, 1500)
	test.That(t, req.ImageHeight, test.ShouldEqual, 2000)

	req, err = ParseRequest(map[string]interface{}{"centerX": 10.0, "centerY": 20.0, "diameter": 5.0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, req.ImageWidth, test.ShouldEqual, 0)

	for _, tc := range []struct {
		name  string
		extra map[string]interface{}
		field string
	}{
		{"width only", map[string]interface{}{"imageWidth": 100}, FieldImageHeight},
		{"height only", map[string]interface{}{"imageHeight": 100}, FieldImageWidth},
		{"fractional width", map[string]interface{}{"imageWidth": 100.5, "imageHeight": 100}, FieldImageWidth},
		{"zero height", map[string]interface{}{"imageWidth": 100, "imageHeight": 0}, FieldImageHeight},
		{"string width", map[string]interface{}{"imageWidth": "100", "imageHeight": 100}, FieldImageWidth},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw := map[string]interface{}{"centerX": 10.0, "centerY": 20.0, "diameter": 5.0}
			for k, v := range tc.extra {
				raw[k] = v
			}
			_, err := ParseRequest(raw)
			var invalid *InvalidObservationError
			test.That(t, errors.As(err, &invalid), test.ShouldBeTrue)
			test.That(t, invalid.Field, test.ShouldEqual, tc.field)
		})
	}
}

func TestInvalidObservationErrorMessage(t *testing.T) {
	err := newInvalidObservationError(FieldDiameter, -5.0, "must be positive")
	test.That(t, err.Error(), test.ShouldEqual, "invalid observation: diameter must be positive, got -5")
	err = newInvalidObservationError(FieldCenterX, nil, "is required")
	test.That(t, err.Error(), test.ShouldEqual, "invalid observation: centerX is required")
}
