package calibration

import (
	"go.uber.org/atomic"

	"go.viam.com/sphereloc/transform"
)

// Provider holds the calibration in use. Current is a wait-free load and is safe to call from
// any number of goroutines while another goroutine calls Swap.
type Provider struct {
	current *atomic.Pointer[Calibration]
}

// NewProvider returns a provider serving initial.
func NewProvider(initial *Calibration) (*Provider, error) {
	if initial == nil {
		return nil, transform.NewCalibrationError("no calibration loaded")
	}
	return &Provider{current: atomic.NewPointer(initial)}, nil
}

// Current returns the calibration in use.
func (p *Provider) Current() *Calibration {
	return p.current.Load()
}

// Swap installs next and returns the calibration it replaced.
func (p *Provider) Swap(next *Calibration) (*Calibration, error) {
	if next == nil {
		return nil, transform.NewCalibrationError("cannot install an empty calibration")
	}
	return p.current.Swap(next), nil
}
