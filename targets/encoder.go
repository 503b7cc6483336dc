package targets

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-yolo-targets/anchors"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/pkg/errors"
)

// Options configures an Encoder. The value is copied on construction.
type Options struct {
	// GridSizes holds S for every scale, in the same order as the anchor groups.
	GridSizes []int `json:"grid_sizes" yaml:"grid_sizes"`
	// NumClasses is the size of the label set.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// IgnoreIoUThreshold is the IoU above which a non-chosen anchor is marked Ignore.
	IgnoreIoUThreshold float32 `json:"ignore_iou_threshold" yaml:"ignore_iou_threshold"`
	// LastBoxOnly encodes only the final box of each image. Older training code
	// behaved this way because of a loop scoping mistake; enable it only to
	// reproduce targets produced by that code.
	LastBoxOnly bool `json:"last_box_only" yaml:"last_box_only"`
	// OnePositivePerBox stops a box from claiming a positive at more than one
	// scale. Candidates ranked after the first positive can still be ignored.
	OnePositivePerBox bool `json:"one_positive_per_box" yaml:"one_positive_per_box"`
}

// DefaultOptions returns the YOLOv3 defaults: 13/26/52 grids, 20 classes, 0.5 ignore threshold.
func DefaultOptions() Options {
	return Options{
		GridSizes:          []int{13, 26, 52},
		NumClasses:         20,
		IgnoreIoUThreshold: 0.5,
	}
}

// Encoder turns ground-truth boxes into per-scale targets.
//
// An Encoder only holds immutable configuration and is safe for concurrent use.
type Encoder struct {
	anchors *anchors.Set
	opts    Options
}

// NewEncoder validates the options against the anchor set and builds an Encoder.
//
// Arguments:
//   - set: The anchor templates, one group per scale.
//   - opts: Grid sizes, class count and ignore threshold.
//
// Returns:
//   - *Encoder: The configured encoder.
//   - error: ErrInvalidConfig if the options do not fit the anchor set.
//
// @example
//
//	set, _ := anchors.NewSet(groups)
//	encoder, err := NewEncoder(set, DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	targets, err := encoder.Encode(boxes)
func NewEncoder(set *anchors.Set, opts Options) (*Encoder, error) {
	if set == nil {
		return nil, errors.Wrap(common.ErrInvalidConfig, "anchor set is nil")
	}
	if len(opts.GridSizes) != set.Scales() {
		return nil, errors.Wrapf(common.ErrInvalidConfig,
			"%d grid sizes for %d anchor scales", len(opts.GridSizes), set.Scales())
	}
	for s, size := range opts.GridSizes {
		if size <= 0 {
			return nil, errors.Wrapf(common.ErrInvalidConfig, "grid size %d at scale %d", size, s)
		}
	}
	if opts.NumClasses <= 0 {
		return nil, errors.Wrapf(common.ErrInvalidConfig, "num classes %d", opts.NumClasses)
	}
	if opts.IgnoreIoUThreshold < 0 || opts.IgnoreIoUThreshold > 1 {
		return nil, errors.Wrapf(common.ErrInvalidConfig, "ignore IoU threshold %v", opts.IgnoreIoUThreshold)
	}

	opts.GridSizes = append([]int(nil), opts.GridSizes...)
	return &Encoder{anchors: set, opts: opts}, nil
}

// Anchors returns the anchor set used for matching.
func (e *Encoder) Anchors() *anchors.Set {
	return e.anchors
}

// Options returns a copy of the encoder options.
func (e *Encoder) Options() Options {
	o := e.opts
	o.GridSizes = append([]int(nil), e.opts.GridSizes...)
	return o
}

// Encode builds fresh targets for the boxes of one image.
//
// Boxes are processed in order and share the target tensors. Only Negative slots
// are written, so a later box never overwrites an earlier Positive or Ignore.
//
// Arguments:
//   - boxes: The ground-truth boxes of the image.
//
// Returns:
//   - *Targets: One (A, S, S, 6) tensor per scale.
//   - error: ErrMalformedLabel if a box has a size that is not finite and
//     positive, a center outside [0, 1] (NaN included) or a class outside [0, NumClasses).
func (e *Encoder) Encode(boxes []common.Box) (*Targets, error) {
	for n, box := range boxes {
		if err := box.Validate(e.opts.NumClasses); err != nil {
			return nil, errors.Wrapf(err, "box %d", n)
		}
		if !(box.X >= 0 && box.X <= 1 && box.Y >= 0 && box.Y <= 1) {
			return nil, errors.Wrapf(common.ErrMalformedLabel, "box %d center (%v, %v) outside the image", n, box.X, box.Y)
		}
	}

	t := newTargets(e.anchors.PerScale(), e.opts.GridSizes)

	if e.opts.LastBoxOnly && len(boxes) > 0 {
		boxes = boxes[len(boxes)-1:]
	}
	for _, box := range boxes {
		e.assign(t, box)
	}

	return t, nil
}

// assign applies the anchor assignment policy for one box.
func (e *Encoder) assign(t *Targets, box common.Box) {
	hasAnchor := make([]bool, e.anchors.Scales())

	for _, m := range e.anchors.Rank(box.W, box.H) {
		scale, anchor := e.anchors.Locate(m.Index)
		size := e.opts.GridSizes[scale]
		i, j := cell(size, box.Y), cell(size, box.X)

		taken := t.objectness(scale, anchor, i, j)

		switch {
		case taken == Negative && !hasAnchor[scale]:
			fs := float32(size)
			t.setSlot(scale, anchor, i, j, Slot{
				Objectness: Positive,
				X:          fs*box.X - float32(j),
				Y:          fs*box.Y - float32(i),
				W:          box.W * fs,
				H:          box.H * fs,
				Class:      box.Class,
			})
			if e.opts.OnePositivePerBox {
				for k := range hasAnchor {
					hasAnchor[k] = true
				}
			} else {
				hasAnchor[scale] = true
			}
		case taken == Negative && m.IoU > e.opts.IgnoreIoUThreshold:
			t.setObjectness(scale, anchor, i, j, Ignore)
		}
	}
}

// cell maps a normalized coordinate to a grid index in [0, size-1].
func cell(size int, v float32) int {
	idx := int(math32.Floor(float32(size) * v))
	if idx >= size {
		return size - 1
	}
	if idx < 0 {
		return 0
	}
	return idx
}
