package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"

	"github.com/chai2010/webp"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// FileLoader decodes images from disk with pure Go decoders.
type FileLoader struct{}

// Load reads and decodes the image at path into RGB pixels.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - *Image: The decoded image, Path set.
//   - error: ErrMissingFile if the path does not exist, or a decoding error.
//
// @example
// img, err := FileLoader{}.Load("data/images/000001.jpg")
//
//	if err != nil {
//	    return err
//	}
func (FileLoader) Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(common.ErrMissingFile, "image %s", path)
		}
		return nil, errors.Wrapf(err, "read image %s", path)
	}

	format := FormatFromPath(path)
	decoded, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, errors.Wrapf(err, "decode image %s", path)
	}

	img := FromImage(decoded, format)
	img.Path = path
	return img, nil
}

// Decode decodes an image stream of a known format. FormatUnknown sniffs the
// stream with the registered image decoders.
func Decode(r io.Reader, format ImageFormat) (image.Image, error) {
	switch format {
	case FormatJPEG:
		return jpeg.Decode(r)
	case FormatPNG:
		return png.Decode(r)
	case FormatWebP:
		return webp.Decode(r)
	case FormatBMP:
		return bmp.Decode(r)
	}
	img, _, err := image.Decode(r)
	return img, err
}
