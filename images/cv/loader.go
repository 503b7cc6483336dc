// Package cv - OpenCV backed image loading and resizing.
package cv

import (
	"io/fs"
	"os"

	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Loader decodes images with OpenCV and converts them from BGR to RGB.
type Loader struct{}

// Load reads the image at path with gocv.IMRead.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - *images.Image: The decoded RGB image.
//   - error: ErrMissingFile if the path does not exist, or a decoding error.
func (Loader) Load(path string) (*images.Image, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(common.ErrMissingFile, "image %s", path)
		}
		return nil, errors.Wrapf(err, "stat image %s", path)
	}

	bgr := gocv.IMRead(path, gocv.IMReadColor)
	defer bgr.Close()
	if bgr.Empty() {
		return nil, errors.Errorf("opencv could not decode %s", path)
	}

	return FromMat(bgr, path)
}

// FromMat copies a 3-channel BGR Mat into an RGB image.
func FromMat(bgr gocv.Mat, path string) (*images.Image, error) {
	if bgr.Channels() != 3 {
		return nil, errors.Errorf("expected 3 channels, got %d", bgr.Channels())
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	width, height := rgb.Cols(), rgb.Rows()
	data := rgb.ToBytes()
	if len(data) != width*height*3 {
		return nil, errors.Errorf("unexpected mat size %d for %dx%d", len(data), width, height)
	}

	return &images.Image{
		Format: images.FormatFromPath(path),
		Path:   path,
		Width:  width,
		Height: height,
		Pixels: images.NewPixels(width, height, data),
	}, nil
}
