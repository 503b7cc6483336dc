// Package targets - per-scale YOLO training targets and the anchor assignment policy.
package targets

import (
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

// Slot field offsets along the last tensor axis.
const (
	FieldObjectness = iota
	FieldX
	FieldY
	FieldW
	FieldH
	FieldClass
	// SlotSize is the number of values stored per target slot.
	SlotSize
)

// Objectness values.
const (
	// Negative marks an untouched slot: no object.
	Negative float32 = 0
	// Positive marks the slot responsible for a ground-truth box.
	Positive float32 = 1
	// Ignore marks a slot the loss must not penalize.
	Ignore float32 = -1
)

// Slot is a decoded view of one target cell entry.
type Slot struct {
	Objectness float32
	// X, Y are the box center offsets inside the cell, in [0, 1).
	X, Y float32
	// W, H are the box size in cell units.
	W, H float32
	// Class is only meaningful when Objectness is Positive.
	Class int
}

// ScaleSummary counts the assignment decisions at one scale.
type ScaleSummary struct {
	GridSize  int `json:"grid_size"`
	Positives int `json:"positives"`
	Ignored   int `json:"ignored"`
}

// Targets holds one float32 tensor of shape (A, S, S, 6) per detection scale.
type Targets struct {
	scales   []*tensor.Dense
	grids    []int
	perScale int
}

func newTargets(perScale int, grids []int) *Targets {
	t := &Targets{
		scales:   make([]*tensor.Dense, len(grids)),
		grids:    append([]int(nil), grids...),
		perScale: perScale,
	}
	for s, size := range grids {
		t.scales[s] = tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(perScale, size, size, SlotSize),
		)
	}
	return t
}

// Len returns the number of scales.
func (t *Targets) Len() int {
	return len(t.scales)
}

// Scale returns the target tensor of one scale.
func (t *Targets) Scale(s int) *tensor.Dense {
	return t.scales[s]
}

// Tensors returns the per-scale tensors in configured order. With the default
// grids that is coarsest (13x13) first.
func (t *Targets) Tensors() []*tensor.Dense {
	return append([]*tensor.Dense(nil), t.scales...)
}

// GridSize returns S for one scale.
func (t *Targets) GridSize(s int) int {
	return t.grids[s]
}

// offset is the index of field 0 of slot (a, i, j) in the backing slice of scale s.
func (t *Targets) offset(s, a, i, j int) int {
	size := t.grids[s]
	return ((a*size+i)*size + j) * SlotSize
}

func (t *Targets) data(s int) []float32 {
	return t.scales[s].Float32s()
}

func (t *Targets) objectness(s, a, i, j int) float32 {
	return t.data(s)[t.offset(s, a, i, j)+FieldObjectness]
}

func (t *Targets) setObjectness(s, a, i, j int, v float32) {
	t.data(s)[t.offset(s, a, i, j)+FieldObjectness] = v
}

func (t *Targets) setSlot(s, a, i, j int, slot Slot) {
	d := t.data(s)
	o := t.offset(s, a, i, j)
	d[o+FieldObjectness] = slot.Objectness
	d[o+FieldX] = slot.X
	d[o+FieldY] = slot.Y
	d[o+FieldW] = slot.W
	d[o+FieldH] = slot.H
	d[o+FieldClass] = float32(slot.Class)
}

// Slot decodes the entry for anchor a at row i, column j of scale s.
//
// Arguments:
//   - s: The scale index.
//   - a: The anchor index within the scale.
//   - i: The grid row (derived from y).
//   - j: The grid column (derived from x).
//
// Returns:
//   - Slot: The decoded values.
func (t *Targets) Slot(s, a, i, j int) Slot {
	d := t.data(s)
	o := t.offset(s, a, i, j)
	return Slot{
		Objectness: d[o+FieldObjectness],
		X:          d[o+FieldX],
		Y:          d[o+FieldY],
		W:          d[o+FieldW],
		H:          d[o+FieldH],
		Class:      int(d[o+FieldClass]),
	}
}

// Summary counts positive and ignored slots at every scale.
func (t *Targets) Summary() []ScaleSummary {
	out := make([]ScaleSummary, len(t.scales))
	for s := range t.scales {
		out[s].GridSize = t.grids[s]
		d := t.data(s)
		for o := 0; o < len(d); o += SlotSize {
			switch d[o+FieldObjectness] {
			case Positive:
				out[s].Positives++
			case Ignore:
				out[s].Ignored++
			}
		}
	}
	return out
}

// Equal reports whether two target sets have the same layout and bit-identical values.
func (t *Targets) Equal(o *Targets) bool {
	if o == nil || len(t.scales) != len(o.scales) || t.perScale != o.perScale {
		return false
	}
	for s := range t.scales {
		if t.grids[s] != o.grids[s] {
			return false
		}
		a, b := t.data(s), o.data(s)
		if len(a) != len(b) {
			return false
		}
		for k := range a {
			if math.Float32bits(a[k]) != math.Float32bits(b[k]) {
				return false
			}
		}
	}
	return true
}

func (t *Targets) String() string {
	return fmt.Sprintf("targets.Targets{grids: %v, perScale: %d, summary: %+v}", t.grids, t.perScale, t.Summary())
}
