package augment

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/images"
)

// Clip clamps box extents to the image. Boxes left with a side of MinSize or
// less, or an area of MinArea or less, are dropped.
type Clip struct {
	MinSize float32
	MinArea float32
}

// Apply clips every box to [0, 1] on both axes.
func (c Clip) Apply(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error) {
	out := make([]common.Box, 0, len(boxes))
	for _, box := range boxes {
		x1, y1, x2, y2 := box.Corners()
		x1, x2 = clamp01(x1), clamp01(x2)
		y1, y2 = clamp01(y1), clamp01(y2)

		w, h := x2-x1, y2-y1
		clipped := common.Box{
			X:     x1 + w/2,
			Y:     y1 + h/2,
			W:     w,
			H:     h,
			Class: box.Class,
		}
		if w <= c.MinSize || h <= c.MinSize || clipped.Area() <= c.MinArea {
			continue
		}
		out = append(out, clipped)
	}
	return img, out, nil
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
