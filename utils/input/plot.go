package input

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format
	"image/png"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/kris-hansen/analyst/utils/fileutil"
)

// MaxPlotDimension bounds the longer side of a stored plot image
const MaxPlotDimension = 512

// Plot is an uploaded visualization kept for interpretation
type Plot struct {
	Name   string `json:"name"`
	MIME   string `json:"mime"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Data   []byte `json:"data"`
}

// ProcessPlot stores HTML plots verbatim and re-encodes images as PNG no larger
// than MaxPlotDimension on either side.
func (h *Handler) ProcessPlot(up Upload) (*Plot, error) {
	if err := ValidateName(up.Name); err != nil {
		return nil, err
	}
	name := filepath.Base(up.Name)
	if !IsPlotFile(name) {
		return nil, fmt.Errorf("plot '%s': %w", name, ErrUnsupportedType)
	}
	if err := fileutil.CheckSize(name, int64(len(up.Data)), h.maxSize); err != nil {
		return nil, err
	}

	if !IsImageFile(name) {
		return &Plot{Name: name, MIME: "text/html", Data: up.Data}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(up.Data))
	if err != nil {
		return nil, fmt.Errorf("error decoding image %s: %w", name, err)
	}
	img = resizeImage(img, MaxPlotDimension)

	var buf bytes.Buffer
	encoder := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return &Plot{Name: name, MIME: "image/png", Width: b.Dx(), Height: b.Dy(), Data: buf.Bytes()}, nil
}

// resizeImage scales img down so neither side exceeds maxDim, keeping the aspect ratio
func resizeImage(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxDim
		newHeight = (height * maxDim) / width
	} else {
		newHeight = maxDim
		newWidth = (width * maxDim) / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
