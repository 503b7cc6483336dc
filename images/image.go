// Package images - RGB image container and decoders for dataset loading.
package images

import (
	"image"
	"image/color"

	"gorgonia.org/tensor"
)

// Image is a decoded RGB image.
type Image struct {
	// The format the image was decoded from.
	Format ImageFormat `json:"format" yaml:"format"`
	// The path the image was loaded from, if any.
	Path string `json:"path" yaml:"path"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
	// Pixels is a uint8 tensor of shape (Height, Width, 3) in RGB order.
	Pixels *tensor.Dense `json:"-" yaml:"-"`
}

// FromImage copies any image.Image into an RGB pixel tensor.
//
// Alpha is dropped without premultiplying, so a translucent pixel keeps its color.
// Grayscale and paletted sources are expanded to three channels.
//
// Arguments:
//   - img: The source image.
//   - format: The format recorded on the result.
//
// Returns:
//   - *Image: The converted image.
func FromImage(img image.Image, format ImageFormat) *Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]uint8, width*height*3)

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			data[idx] = c.R
			data[idx+1] = c.G
			data[idx+2] = c.B
			idx += 3
		}
	}

	return &Image{
		Format: format,
		Width:  width,
		Height: height,
		Pixels: NewPixels(width, height, data),
	}
}

// NewPixels wraps an RGB byte slice of length width*height*3 in a (H, W, 3) tensor.
func NewPixels(width, height int, data []uint8) *tensor.Dense {
	return tensor.New(
		tensor.Of(tensor.Uint8),
		tensor.WithShape(height, width, 3),
		tensor.WithBacking(data),
	)
}

// RGB returns the color of the pixel at column x, row y.
func (i *Image) RGB(x, y int) (r, g, b uint8) {
	data := i.Pixels.Uint8s()
	o := (y*i.Width + x) * 3
	return data[o], data[o+1], data[o+2]
}

// ToRGBA converts the image back into an *image.RGBA with opaque alpha.
func (i *Image) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, i.Width, i.Height))
	src := i.Pixels.Uint8s()
	for p, o := 0, 0; p < len(src); p, o = p+3, o+4 {
		dst.Pix[o] = src[p]
		dst.Pix[o+1] = src[p+1]
		dst.Pix[o+2] = src[p+2]
		dst.Pix[o+3] = 0xff
	}
	return dst
}
