package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"thumbsmith/internal/services"
)

// Policy controls how raw asset bytes become the normalized artifact.
type Policy struct {
	// Quality is the WebP encode quality, 0-100.
	Quality int
	// MaxDimension caps the long edge; larger images are downscaled
	// preserving aspect ratio. Images are never upscaled.
	MaxDimension int
	// MinInputBytes rejects undersized payloads before any decode attempt.
	// Error pages served as assets fall below this threshold.
	MinInputBytes int
}

// Transcode converts raw image bytes into WebP under policy. It is a pure
// function of its inputs; all I/O belongs to the caller. Failures are tagged
// invalid-asset (input too small) or transcode (decode/encode) and are never
// fatal to a run.
func Transcode(raw []byte, policy Policy) ([]byte, error) {
	if len(raw) < policy.MinInputBytes {
		return nil, services.Wrap(
			services.ErrInvalidAsset, "transcode", "validate",
			fmt.Sprintf("payload %d bytes below minimum %d", len(raw), policy.MinInputBytes), nil,
		)
	}

	img, err := decode(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "decode", "", err)
	}

	img = flatten(img)

	bounds := img.Bounds()
	if bounds.Dx() > policy.MaxDimension || bounds.Dy() > policy.MaxDimension {
		img = imaging.Fit(img, policy.MaxDimension, policy.MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	opts := &webp.Options{Lossless: false, Quality: float32(policy.Quality)}
	if err := webp.Encode(&buf, img, opts); err != nil {
		return nil, services.Wrap(services.ErrTranscode, "transcode", "encode", "", err)
	}
	return buf.Bytes(), nil
}

// decode handles every supported codec: imaging covers JPEG/PNG/GIF/TIFF/BMP,
// with a WebP fallback for sources that already serve WebP.
func decode(raw []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err == nil {
		return img, nil
	}
	if webpImg, webpErr := webp.Decode(bytes.NewReader(raw)); webpErr == nil {
		return webpImg, nil
	}
	return nil, err
}

// flatten composites transparent or palette images onto an opaque white
// background. Transparency has no meaning in the output format.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}
