// Package webcam is the OpenCV-backed camera.Source.
package webcam

import (
	"fmt"
	"image"
	"sync"

	"github.com/1F47E/qr-navigator/pkg/camera"
	"gocv.io/x/gocv"
)

var _ camera.Source = (*Webcam)(nil)

// Webcam captures frames from a local video device or stream URL through OpenCV
type Webcam struct {
	device interface{}

	mu      sync.Mutex
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// NewWebcam creates a webcam source. device is a device index or a stream URL.
func NewWebcam(device interface{}) *Webcam {
	return &Webcam{device: device}
}

// Open implements camera.Source
func (w *Webcam) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture != nil {
		return nil
	}
	capture, err := gocv.OpenVideoCapture(w.device)
	if err != nil {
		return fmt.Errorf("failed to open video capture %v: %w", w.device, err)
	}
	// always read the newest frame
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	w.capture = capture
	w.frame = gocv.NewMat()
	return nil
}

// Frame implements camera.Source
func (w *Webcam) Frame() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil, camera.ErrClosed
	}
	if ok := w.capture.Read(&w.frame); !ok || w.frame.Empty() {
		return nil, fmt.Errorf("failed to read frame from %v", w.device)
	}
	img, err := w.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

// Close implements camera.Source
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil
	}
	w.frame.Close()
	err := w.capture.Close()
	w.capture = nil
	return err
}
