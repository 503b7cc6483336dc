package cv

import (
	"image"

	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Resize scales images with OpenCV. It satisfies augment.Augmenter; normalized
// boxes pass through unchanged.
type Resize struct {
	Width         int
	Height        int
	Interpolation gocv.InterpolationFlags
}

// NewResize returns a bilinear OpenCV Resize to width x height.
func NewResize(width, height int) *Resize {
	return &Resize{Width: width, Height: height, Interpolation: gocv.InterpolationLinear}
}

// Apply resizes img. An image already at the target size is returned as is.
//
// Arguments:
//   - img: The RGB image to resize.
//   - boxes: Normalized boxes, returned untouched.
//
// Returns:
//   - *images.Image: The resized image.
//   - []common.Box: boxes.
//   - error: An error if the target size is invalid or OpenCV rejects the pixels.
func (r *Resize) Apply(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, nil, errors.Errorf("invalid resize target %dx%d", r.Width, r.Height)
	}
	if img.Width == r.Width && img.Height == r.Height {
		return img, boxes, nil
	}

	src, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pixels.Uint8s())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to wrap pixels")
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(r.Width, r.Height), 0, 0, r.Interpolation)
	if dst.Empty() {
		return nil, nil, errors.New("failed to resize image")
	}

	return &images.Image{
		Format: img.Format,
		Path:   img.Path,
		Width:  r.Width,
		Height: r.Height,
		Pixels: images.NewPixels(r.Width, r.Height, dst.ToBytes()),
	}, boxes, nil
}
