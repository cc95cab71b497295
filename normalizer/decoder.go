package normalizer

import (
	"bytes"
	"fmt"
	"image"

	// Register decoders beyond the set imaging pulls in itself.
	_ "image/gif"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"imagededup/logging"
)

// ByteDecoder turns an encoded image payload into pixels.
type ByteDecoder interface {
	Decode(data []byte) (image.Image, error)
}

// StandardDecoder handles the formats the Go image decoders support
// (JPEG, PNG, GIF, WebP, BMP, TIFF) and applies EXIF orientation so the
// pixels are upright before any measurement.
type StandardDecoder struct{}

func (d *StandardDecoder) Decode(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// OpenCVDecoder is the fallback for payloads the Go decoders reject.
// OpenCV applies EXIF orientation on decode itself.
type OpenCVDecoder struct{}

func (d *OpenCVDecoder) Decode(data []byte) (image.Image, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return nil, fmt.Errorf("opencv decode failed: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("opencv could not decode %d byte payload", len(data))
	}

	return mat.ToImage()
}

// DecoderRegistry manages available byte decoders
type DecoderRegistry struct {
	decoders []ByteDecoder
}

// NewDecoderRegistry creates a registry with the default decoder chain
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{
		decoders: []ByteDecoder{
			&StandardDecoder{},
			&OpenCVDecoder{},
		},
	}
}

// RegisterDecoder adds a custom decoder to the registry
func (r *DecoderRegistry) RegisterDecoder(d ByteDecoder) {
	r.decoders = append(r.decoders, d)
}

// Decode tries each registered decoder in order and returns the first
// successful result.
func (r *DecoderRegistry) Decode(data []byte) (image.Image, error) {
	var lastErr error
	for _, d := range r.decoders {
		img, err := d.Decode(data)
		if err == nil {
			return img, nil
		}
		lastErr = err
	}

	logging.DebugLog("all decoders rejected %d byte payload: %v", len(data), lastErr)
	return nil, fmt.Errorf("no decoder could read image data: %v", lastErr)
}
