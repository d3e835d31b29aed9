// Package decoder reads QR code payloads from camera frames.
package decoder

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder extracts a text payload from a frame. ok is false when no code was found.
type Decoder interface {
	Decode(frame image.Image) (text string, ok bool)
}

// Options mirror the reader switches of the reference scanner
type Options struct {
	// AutoRotate retries the frame rotated by 90, 180 and 270 degrees
	AutoRotate bool
	// TryHarder spends more time looking for a code
	TryHarder bool
}

// DefaultOptions returns AutoRotate and TryHarder enabled
func DefaultOptions() Options {
	return Options{AutoRotate: true, TryHarder: true}
}

// QRDecoder decodes QR codes with gozxing
type QRDecoder struct {
	opts  Options
	hints map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder creates a QR decoder with the given options
func NewQRDecoder(opts Options) *QRDecoder {
	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return &QRDecoder{opts: opts, hints: hints}
}

// Decode implements Decoder
func (d *QRDecoder) Decode(frame image.Image) (string, bool) {
	if frame == nil || frame.Bounds().Empty() {
		return "", false
	}

	if text, ok := d.decodeOnce(frame); ok {
		return text, true
	}
	if !d.opts.AutoRotate {
		return "", false
	}

	rotated := frame
	for i := 0; i < 3; i++ {
		rotated = rotate90(rotated)
		if text, ok := d.decodeOnce(rotated); ok {
			return text, true
		}
	}
	return "", false
}

// DecodePixels decodes a tightly packed RGBA buffer of width*height pixels
func (d *QRDecoder) DecodePixels(pixels []byte, width, height int) (string, bool, error) {
	if width <= 0 || height <= 0 {
		return "", false, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if len(pixels) != width*height*4 {
		return "", false, fmt.Errorf("pixel buffer has %d bytes, want %d", len(pixels), width*height*4)
	}
	img := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	text, ok := d.Decode(img)
	return text, ok, nil
}

func (d *QRDecoder) decodeOnce(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	// readers are not safe for concurrent use
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil || result == nil {
		return "", false
	}
	return result.GetText(), true
}

func rotate90(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x-b.Min.X, src.At(x, y))
		}
	}
	return dst
}
