package web

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	maxUploadBodyBytes = 32 << 20
	uploadJPEGQuality  = 95
)

type uploadRequest struct {
	Image *string `json:"image"`
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// handleUploadImage stores a captured frame sent as a base64 data URL. The frame is decoded, turned
// upright according to its EXIF orientation and saved as JPEG; the reported size is the size pixel
// coordinates for /api/localize should be measured in. Frames are saved, not analyzed.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "Request body must be a JSON object."})
		return
	}
	if req.Image == nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "No image data provided."})
		return
	}
	imageBytes, err := decodeDataURL(*req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: fmt.Sprintf("Malformed image data: %v", err)})
		return
	}
	img, err := imaging.Decode(bytes.NewReader(imageBytes), imaging.AutoOrientation(true))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: fmt.Sprintf("Malformed image data: %v", err)})
		return
	}

	filename, err := s.saveUpload(img)
	if err != nil {
		s.logger.Errorw("cannot save uploaded image", "error", err)
		writeJSON(w, http.StatusInternalServerError, uploadResponse{Message: fmt.Sprintf("Server error: %v", err)})
		return
	}
	bounds := img.Bounds()
	s.logger.Infow("saved uploaded image", "filename", filename, "width", bounds.Dx(), "height", bounds.Dy())
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:  true,
		Message:  fmt.Sprintf("Image saved as %s", filename),
		Filename: filename,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	})
}

// decodeDataURL returns the payload of a "data:<mime>;base64,<payload>" URL.
func decodeDataURL(dataURL string) ([]byte, error) {
	_, payload, found := strings.Cut(dataURL, ",")
	if !found {
		return nil, errors.New("expected a data URL of the form data:<type>;base64,<data>")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base64")
	}
	if len(data) == 0 {
		return nil, errors.New("image is empty")
	}
	return data, nil
}

// saveUpload writes img as captured_image_<timestamp>.jpeg in the upload directory. A second
// upload within the same second gets a random suffix instead of overwriting the first.
func (s *Server) saveUpload(img image.Image) (string, error) {
	stamp := s.clock.Now().Format("20060102_150405")
	filename := fmt.Sprintf("captured_image_%s.jpeg", stamp)
	path := filepath.Join(s.options.UploadDir, filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, os.ErrExist) {
		filename = fmt.Sprintf("captured_image_%s_%s.jpeg", stamp, uuid.NewString()[:8])
		path = filepath.Join(s.options.UploadDir, filename)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	}
	if err != nil {
		return "", err
	}
	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(uploadJPEGQuality)); err != nil {
		return "", multierr.Combine(err, f.Close(), os.Remove(path))
	}
	return filename, f.Close()
}
