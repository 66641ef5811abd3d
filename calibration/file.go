package calibration

import (
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/sphereloc/transform"
)

// Resolution is an image size in pixels.
type Resolution struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

// File is the on-disk calibration format. Distortion is given either as named coefficients or as
// an OpenCV ordered dist_coeffs array, never both. Neither means no distortion.
type File struct {
	ReferenceResolution Resolution              `json:"reference_resolution"`
	CameraMatrix        [][]float64             `json:"camera_matrix"`
	Distortion          *transform.BrownConrady `json:"distortion,omitempty"`
	DistCoeffs          []float64               `json:"dist_coeffs,omitempty"`
}

// NewFile describes model in the on-disk format.
func NewFile(model *transform.PinholeCameraModel) *File {
	f := &File{
		ReferenceResolution: Resolution{Width: model.Width, Height: model.Height},
		CameraMatrix:        model.Rows(),
	}
	if model.Distortion != nil {
		dist := *model.Distortion
		f.Distortion = &dist
	}
	return f
}

// Model validates the file and builds the camera model it describes.
func (f *File) Model() (*transform.PinholeCameraModel, error) {
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromMatrix(
		f.CameraMatrix, f.ReferenceResolution.Width, f.ReferenceResolution.Height)
	if err != nil {
		return nil, err
	}
	var dist *transform.BrownConrady
	switch {
	case f.Distortion != nil && f.DistCoeffs != nil:
		return nil, transform.NewCalibrationError("only one of distortion and dist_coeffs may be set")
	case f.Distortion != nil:
		dist, err = transform.NewBrownConrady(f.Distortion.Parameters())
	case f.DistCoeffs != nil:
		dist, err = transform.NewBrownConradyFromOpenCV(f.DistCoeffs)
	default:
		dist = &transform.BrownConrady{}
	}
	if err != nil {
		return nil, err
	}
	return &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics, Distortion: dist}, nil
}

// ReadFile reads a calibration file, substituting ${ENV} references.
func ReadFile(path string) (*File, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, transform.NewCalibrationError("cannot read calibration file %q: %v", path, err)
	}
	f, err := decode(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "calibration file %q", path)
	}
	return f, nil
}

// Read reads a calibration from r, substituting ${ENV} references.
func Read(r io.Reader) (*File, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, transform.NewCalibrationError("cannot read calibration: %v", err)
	}
	buf, err := envsubst.Bytes(raw)
	if err != nil {
		return nil, transform.NewCalibrationError("cannot substitute environment: %v", err)
	}
	return decode(buf)
}

func decode(buf []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(buf, &f); err != nil {
		return nil, transform.NewCalibrationError("malformed calibration json: %v", err)
	}
	return &f, nil
}

// Load reads the calibration file at path and binds it to a capture resolution.
func Load(path string, captureWidth, captureHeight int) (*Calibration, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	model, err := f.Model()
	if err != nil {
		return nil, errors.Wrapf(err, "calibration file %q", path)
	}
	cal, err := New(model, captureWidth, captureHeight)
	if err != nil {
		return nil, errors.Wrapf(err, "calibration file %q", path)
	}
	cal.source = path
	return cal, nil
}
