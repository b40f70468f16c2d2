package scanner

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnsupported means the device has no barcode detection capability.
	ErrUnsupported = errors.New("barcode detection not supported on this device")
	// ErrDevice means the camera is unavailable or permission was denied.
	ErrDevice = errors.New("camera unavailable")
)

// FrameSource inspects the live camera frame once per call. Implementations
// signal hard failures with ErrUnsupported or ErrDevice.
type FrameSource interface {
	DetectCode(ctx context.Context) (payload string, found bool, err error)
}

// Detector drives periodic detection against a FrameSource. It is a plain
// cancellable task: Run returns on the first positive detection, on a source
// failure, or when the context is cancelled, whichever happens first.
type Detector struct {
	Source   FrameSource
	Interval time.Duration
}

func NewDetector(source FrameSource, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Detector{Source: source, Interval: interval}
}

func (d *Detector) Run(ctx context.Context) (string, error) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			payload, found, err := d.Source.DetectCode(ctx)
			if err != nil {
				return "", err
			}
			if found {
				return payload, nil
			}
		}
	}
}
