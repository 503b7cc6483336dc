// Package anchors - anchor templates and width/height IoU matching for YOLO-style targets.
package anchors

import (
	"fmt"

	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/pkg/errors"
)

// Template is an anchor shape, normalized to [0, 1] relative to the image size.
type Template struct {
	W float32 `json:"w" yaml:"w"`
	H float32 `json:"h" yaml:"h"`
}

// Set is the immutable, flat sequence of anchor templates for every detection scale.
//
// Templates are stored scale by scale, so a flat index decomposes as
// scale = index / PerScale() and anchor = index % PerScale().
type Set struct {
	templates []Template
	scales    int
	perScale  int
}

// NewSet flattens per-scale template groups into a Set.
//
// Arguments:
//   - groups: One slice of templates per scale, all of the same length.
//
// Returns:
//   - *Set: The flattened anchor set.
//   - error: ErrInvalidConfig if the groups are empty, ragged, or hold a non-positive template.
//
// @example
//
//	set, err := NewSet([][]Template{
//	    {{0.28, 0.22}, {0.38, 0.48}, {0.9, 0.78}},
//	    {{0.07, 0.15}, {0.15, 0.11}, {0.14, 0.29}},
//	    {{0.02, 0.03}, {0.04, 0.07}, {0.08, 0.06}},
//	})
func NewSet(groups [][]Template) (*Set, error) {
	if len(groups) == 0 {
		return nil, errors.Wrap(common.ErrInvalidConfig, "anchor set needs at least one scale")
	}
	perScale := len(groups[0])
	if perScale == 0 {
		return nil, errors.Wrap(common.ErrInvalidConfig, "anchor scale has no templates")
	}

	templates := make([]Template, 0, len(groups)*perScale)
	for s, group := range groups {
		if len(group) != perScale {
			return nil, errors.Wrapf(common.ErrInvalidConfig,
				"scale %d has %d anchors, expected %d", s, len(group), perScale)
		}
		for a, t := range group {
			if t.W <= 0 || t.H <= 0 {
				return nil, errors.Wrapf(common.ErrInvalidConfig,
					"anchor %d at scale %d has non-positive size %vx%v", a, s, t.W, t.H)
			}
			templates = append(templates, t)
		}
	}

	return &Set{
		templates: templates,
		scales:    len(groups),
		perScale:  perScale,
	}, nil
}

// Len returns the total number of templates across all scales.
func (s *Set) Len() int {
	return len(s.templates)
}

// Scales returns the number of detection scales.
func (s *Set) Scales() int {
	return s.scales
}

// PerScale returns the number of templates per scale.
func (s *Set) PerScale() int {
	return s.perScale
}

// At returns the template at a flat index.
func (s *Set) At(index int) Template {
	return s.templates[index]
}

// Locate splits a flat index into its scale and its anchor position within that scale.
func (s *Set) Locate(index int) (scale, anchor int) {
	return index / s.perScale, index % s.perScale
}

// Group returns a copy of the templates belonging to one scale.
func (s *Set) Group(scale int) []Template {
	out := make([]Template, s.perScale)
	copy(out, s.templates[scale*s.perScale:(scale+1)*s.perScale])
	return out
}

func (s *Set) String() string {
	return fmt.Sprintf("anchors.Set{scales: %d, perScale: %d, templates: %v}", s.scales, s.perScale, s.templates)
}
