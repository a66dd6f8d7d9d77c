package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// fit returns the largest size with the aspect ratio of src that fits in a
// w x h box.
func fit(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 || w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	dw, dh := w, sh*w/sw
	if dh > h {
		dw, dh = sw*h/sh, h
	}
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	return image.Rect(0, 0, dw, dh)
}

// scaleToBox scales img into the bounding box, preserving aspect ratio.
func scaleToBox(img image.Image, w, h int) image.Image {
	bounds := fit(img.Bounds(), w, h)
	if bounds.Empty() {
		return img
	}
	dst := image.NewNRGBA(bounds)
	draw.CatmullRom.Scale(dst, bounds, img, img.Bounds(), draw.Over, nil)
	return dst
}

// thumbnailURL decodes a PNG screenshot, scales it and encodes it as a data
// URL.
func thumbnailURL(raw []byte, w, h int) (string, error) {
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("capture: decode screenshot: %w", err)
	}
	return dataURL(scaleToBox(img, w, h))
}

func dataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("capture: encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
