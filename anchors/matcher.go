package anchors

import (
	"sort"

	"github.com/chewxy/math32"
)

// Match is one anchor candidate for a box.
type Match struct {
	// Index is the flat anchor index inside the Set.
	Index int
	// IoU is the width/height IoU between the box and the anchor.
	IoU float32
}

// WidthHeightIoU computes the IoU of two boxes that share the same center.
//
// Only the sizes matter, so the intersection is min(w1,w2)*min(h1,h2) and the
// union is the sum of both areas minus that intersection.
//
// Arguments:
//   - w1, h1: The size of the first box.
//   - w2, h2: The size of the second box.
//
// Returns:
//   - float32: The IoU in [0, 1] for positive sizes. Zero when the union is empty.
//
// Example:
//
// ```go
//
//	iou := WidthHeightIoU(0.2, 0.2, 0.1, 0.1) // 0.01 / (0.04 + 0.01 - 0.01) = 0.25
//
// ```
func WidthHeightIoU(w1, h1, w2, h2 float32) float32 {
	inter := math32.Min(w1, w2) * math32.Min(h1, h2)
	union := w1*h1 + w2*h2 - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// IoUs returns the width/height IoU between a box size and every template, in flat order.
func (s *Set) IoUs(w, h float32) []float32 {
	out := make([]float32, len(s.templates))
	for i, t := range s.templates {
		out[i] = WidthHeightIoU(w, h, t.W, t.H)
	}
	return out
}

// Rank orders every anchor by descending IoU with a box of the given size.
//
// The first Match is the best anchor. Equal IoUs keep ascending flat index order,
// and NaN scores (from degenerate sizes) sort after every real score.
//
// Arguments:
//   - w, h: The normalized box size.
//
// Returns:
//   - []Match: One entry per template, best first.
func (s *Set) Rank(w, h float32) []Match {
	ious := s.IoUs(w, h)
	matches := make([]Match, len(ious))
	for i, iou := range ious {
		matches[i] = Match{Index: i, IoU: iou}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].IoU, matches[j].IoU
		if math32.IsNaN(b) {
			return !math32.IsNaN(a)
		}
		return a > b
	})

	return matches
}
