package augment

import (
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/images"
	"github.com/pkg/errors"
)

// Resize scales the image to a fixed size. Boxes are normalized, so they pass through unchanged.
type Resize struct {
	Width         int
	Height        int
	Interpolation resize.InterpolationFunction
}

// NewResize returns a bilinear Resize to width x height.
//
// @example
// aug := NewResize(416, 416)
// img, boxes, err := aug.Apply(img, boxes)
func NewResize(width, height int) *Resize {
	return &Resize{Width: width, Height: height, Interpolation: resize.Bilinear}
}

// Apply resizes img. An image already at the target size is returned as is.
func (r *Resize) Apply(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, nil, errors.Errorf("invalid resize target %dx%d", r.Width, r.Height)
	}
	if img.Width == r.Width && img.Height == r.Height {
		return img, boxes, nil
	}

	resized := resize.Resize(uint(r.Width), uint(r.Height), img.ToRGBA(), r.Interpolation)
	out := images.FromImage(resized, img.Format)
	out.Path = img.Path

	return out, boxes, nil
}
