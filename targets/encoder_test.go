package targets

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-yolo-targets/anchors"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yoloV3Set(t *testing.T) *anchors.Set {
	t.Helper()
	set, err := anchors.NewSet([][]anchors.Template{
		{{W: 0.28, H: 0.22}, {W: 0.38, H: 0.48}, {W: 0.9, H: 0.78}},
		{{W: 0.07, H: 0.15}, {W: 0.15, H: 0.11}, {W: 0.14, H: 0.29}},
		{{W: 0.02, H: 0.03}, {W: 0.04, H: 0.07}, {W: 0.08, H: 0.06}},
	})
	require.NoError(t, err)
	return set
}

func newEncoder(t *testing.T, groups [][]anchors.Template, opts Options) *Encoder {
	t.Helper()
	set, err := anchors.NewSet(groups)
	require.NoError(t, err)
	encoder, err := NewEncoder(set, opts)
	require.NoError(t, err)
	return encoder
}

func singleScale(threshold float32, templates ...anchors.Template) ([][]anchors.Template, Options) {
	return [][]anchors.Template{templates}, Options{
		GridSizes:          []int{13},
		NumClasses:         20,
		IgnoreIoUThreshold: threshold,
	}
}

func TestNewEncoder_InvalidOptions(t *testing.T) {
	set := yoloV3Set(t)

	tests := []struct {
		name string
		opts Options
	}{
		{"grid count mismatch", Options{GridSizes: []int{13, 26}, NumClasses: 20, IgnoreIoUThreshold: 0.5}},
		{"zero grid", Options{GridSizes: []int{13, 0, 52}, NumClasses: 20, IgnoreIoUThreshold: 0.5}},
		{"no classes", Options{GridSizes: []int{13, 26, 52}, NumClasses: 0, IgnoreIoUThreshold: 0.5}},
		{"threshold above one", Options{GridSizes: []int{13, 26, 52}, NumClasses: 20, IgnoreIoUThreshold: 1.5}},
		{"negative threshold", Options{GridSizes: []int{13, 26, 52}, NumClasses: 20, IgnoreIoUThreshold: -0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(set, tt.opts)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}

	_, err := NewEncoder(nil, DefaultOptions())
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestNewEncoder_CopiesOptions(t *testing.T) {
	opts := DefaultOptions()
	encoder, err := NewEncoder(yoloV3Set(t), opts)
	require.NoError(t, err)

	opts.GridSizes[0] = 99
	assert.Equal(t, []int{13, 26, 52}, encoder.Options().GridSizes)

	got := encoder.Options()
	got.GridSizes[0] = 7
	assert.Equal(t, 13, encoder.Options().GridSizes[0])
}

func TestEncode_Shapes(t *testing.T) {
	encoder, err := NewEncoder(yoloV3Set(t), DefaultOptions())
	require.NoError(t, err)

	targets, err := encoder.Encode(nil)
	require.NoError(t, err)
	require.Equal(t, 3, targets.Len())

	for s, size := range []int{13, 26, 52} {
		assert.Equal(t, []int{3, size, size, SlotSize}, []int(targets.Scale(s).Shape()))
		assert.Equal(t, size, targets.GridSize(s))
		for _, v := range targets.Scale(s).Float32s() {
			require.Zero(t, v)
		}
	}
}

// Identical anchors at every scale: each scale gets its own positive because
// the has-anchor guard is tracked per scale.
func TestEncode_IdenticalAnchorsAtEveryScale(t *testing.T) {
	groups := [][]anchors.Template{{{W: 0.1, H: 0.1}}, {{W: 0.1, H: 0.1}}, {{W: 0.1, H: 0.1}}}
	encoder := newEncoder(t, groups, DefaultOptions())

	targets, err := encoder.Encode([]common.Box{{X: 0.5, Y: 0.5, W: 0.1, H: 0.1, Class: 3}})
	require.NoError(t, err)

	expected := []struct {
		size int
		cell int
		off  float32
	}{
		{13, 6, 0.5},
		{26, 13, 0},
		{52, 26, 0},
	}
	for s, e := range expected {
		slot := targets.Slot(s, 0, e.cell, e.cell)
		assert.Equal(t, Positive, slot.Objectness, "scale %d", s)
		assert.Equal(t, 3, slot.Class)
		assert.InDelta(t, e.off, slot.X, 1e-5)
		assert.InDelta(t, e.off, slot.Y, 1e-5)
		assert.InDelta(t, 0.1*float32(e.size), slot.W, 1e-5)
		assert.InDelta(t, 0.1*float32(e.size), slot.H, 1e-5)
		assert.Equal(t, ScaleSummary{GridSize: e.size, Positives: 1}, targets.Summary()[s])
	}
}

// With OnePositivePerBox only the top-ranked scale is positive; the other
// scales have IoU 1.0 > 0.5 and become Ignore instead of staying Negative.
func TestEncode_OnePositivePerBox(t *testing.T) {
	groups := [][]anchors.Template{{{W: 0.1, H: 0.1}}, {{W: 0.1, H: 0.1}}, {{W: 0.1, H: 0.1}}}
	opts := DefaultOptions()
	opts.OnePositivePerBox = true
	encoder := newEncoder(t, groups, opts)

	targets, err := encoder.Encode([]common.Box{{X: 0.5, Y: 0.5, W: 0.1, H: 0.1, Class: 3}})
	require.NoError(t, err)

	first := targets.Slot(0, 0, 6, 6)
	assert.Equal(t, Positive, first.Objectness)
	assert.Equal(t, 3, first.Class)

	assert.Equal(t, Slot{Objectness: Ignore}, targets.Slot(1, 0, 13, 13))
	assert.Equal(t, Slot{Objectness: Ignore}, targets.Slot(2, 0, 26, 26))

	summary := targets.Summary()
	assert.Equal(t, 1, summary[0].Positives+summary[1].Positives+summary[2].Positives)
	assert.Equal(t, 2, summary[1].Ignored+summary[2].Ignored)
}

func TestEncode_LastColumnBoundary(t *testing.T) {
	groups, opts := singleScale(0.5, anchors.Template{W: 0.01, H: 0.01})
	encoder := newEncoder(t, groups, opts)

	targets, err := encoder.Encode([]common.Box{{X: 0.999, Y: 0.5, W: 0.01, H: 0.01, Class: 1}})
	require.NoError(t, err)

	slot := targets.Slot(0, 0, 6, 12)
	assert.Equal(t, Positive, slot.Objectness)
	assert.InDelta(t, 13*0.999-12, slot.X, 1e-4)
	assert.Less(t, slot.X, float32(1))
}

func TestEncode_UnitCoordinateClamped(t *testing.T) {
	groups, opts := singleScale(0.5, anchors.Template{W: 0.1, H: 0.1})
	encoder := newEncoder(t, groups, opts)

	targets, err := encoder.Encode([]common.Box{{X: 1, Y: 1, W: 0.1, H: 0.1, Class: 0}})
	require.NoError(t, err)

	slot := targets.Slot(0, 0, 12, 12)
	assert.Equal(t, Positive, slot.Objectness)
	assert.InDelta(t, 1, slot.X, 1e-5)
	assert.InDelta(t, 1, slot.Y, 1e-5)
}

func TestEncode_IgnoreBand(t *testing.T) {
	groups, opts := singleScale(0.5,
		anchors.Template{W: 0.1, H: 0.1},
		anchors.Template{W: 0.11, H: 0.11},
		anchors.Template{W: 0.5, H: 0.5},
	)
	encoder := newEncoder(t, groups, opts)

	targets, err := encoder.Encode([]common.Box{{X: 0.5, Y: 0.5, W: 0.1, H: 0.1, Class: 2}})
	require.NoError(t, err)

	assert.Equal(t, Positive, targets.Slot(0, 0, 6, 6).Objectness)
	// IoU 0.01 / 0.0121 ~ 0.83 with the second anchor.
	assert.Equal(t, Slot{Objectness: Ignore}, targets.Slot(0, 1, 6, 6))
	// IoU 0.04 with the third anchor.
	assert.Equal(t, Slot{}, targets.Slot(0, 2, 6, 6))
}

func TestEncode_IgnoreThresholdIsStrict(t *testing.T) {
	groups, opts := singleScale(0.5,
		anchors.Template{W: 0.5, H: 0.5},
		anchors.Template{W: 1, H: 0.5},
	)
	encoder := newEncoder(t, groups, opts)

	// IoU with the second anchor is exactly 0.25 / 0.5.
	targets, err := encoder.Encode([]common.Box{{X: 0.5, Y: 0.5, W: 0.5, H: 0.5, Class: 0}})
	require.NoError(t, err)

	assert.Equal(t, Positive, targets.Slot(0, 0, 6, 6).Objectness)
	assert.Equal(t, Negative, targets.Slot(0, 1, 6, 6).Objectness)
}

// A second box whose best anchor is already positive must not overwrite it.
func TestEncode_PositiveNeverOverwritten(t *testing.T) {
	groups, opts := singleScale(0.5,
		anchors.Template{W: 0.1, H: 0.1},
		anchors.Template{W: 0.3, H: 0.3},
	)
	encoder := newEncoder(t, groups, opts)

	targets, err := encoder.Encode([]common.Box{
		{X: 0.5, Y: 0.5, W: 0.1, H: 0.1, Class: 4},
		{X: 0.52, Y: 0.52, W: 0.1, H: 0.1, Class: 9},
	})
	require.NoError(t, err)

	first := targets.Slot(0, 0, 6, 6)
	assert.Equal(t, Positive, first.Objectness)
	assert.Equal(t, 4, first.Class)
	assert.InDelta(t, 0.5, first.X, 1e-5)

	// The second box falls through to its next anchor, still unclaimed.
	second := targets.Slot(0, 1, 6, 6)
	assert.Equal(t, Positive, second.Objectness)
	assert.Equal(t, 9, second.Class)
	assert.InDelta(t, 13*0.52-6, second.X, 1e-4)
}

// A second box whose candidate IoU exceeds the threshold but whose slot is
// already claimed leaves that slot alone.
func TestEncode_SecondBoxIgnoredOnTakenSlot(t *testing.T) {
	groups, opts := singleScale(0.5,
		anchors.Template{W: 0.1, H: 0.1},
		anchors.Template{W: 0.11, H: 0.11},
	)
	encoder := newEncoder(t, groups, opts)

	targets, err := encoder.Encode([]common.Box{
		{X: 0.5, Y: 0.5, W: 0.1, H: 0.1, Class: 4},
		{X: 0.5, Y: 0.5, W: 0.11, H: 0.11, Class: 7},
	})
	require.NoError(t, err)

	// Box 1 claims anchor 0 and ignores anchor 1. Box 2 ranks anchor 1 first,
	// but Ignore counts as taken, and anchor 0 is positive.
	assert.Equal(t, 4, targets.Slot(0, 0, 6, 6).Class)
	assert.Equal(t, Positive, targets.Slot(0, 0, 6, 6).Objectness)
	assert.Equal(t, Slot{Objectness: Ignore}, targets.Slot(0, 1, 6, 6))
	assert.Equal(t, ScaleSummary{GridSize: 13, Positives: 1, Ignored: 1}, targets.Summary()[0])
}

func TestEncode_MultipleBoxes(t *testing.T) {
	boxes := []common.Box{
		{X: 0.1, Y: 0.1, W: 0.3, H: 0.3, Class: 1},
		{X: 0.8, Y: 0.6, W: 0.05, H: 0.08, Class: 2},
	}

	t.Run("every box encoded", func(t *testing.T) {
		encoder, err := NewEncoder(yoloV3Set(t), DefaultOptions())
		require.NoError(t, err)

		targets, err := encoder.Encode(boxes)
		require.NoError(t, err)

		total := 0
		for _, s := range targets.Summary() {
			total += s.Positives
		}
		assert.Equal(t, 6, total, "each box gets one positive per scale")

		// Box 0 at 13x13 lands in cell (1, 1); box 1 in (7, 10).
		assert.True(t, hasPositiveAt(targets, 0, 1, 1, 1))
		assert.True(t, hasPositiveAt(targets, 0, 7, 10, 2))
	})

	t.Run("last box only", func(t *testing.T) {
		opts := DefaultOptions()
		opts.LastBoxOnly = true
		encoder, err := NewEncoder(yoloV3Set(t), opts)
		require.NoError(t, err)

		targets, err := encoder.Encode(boxes)
		require.NoError(t, err)

		total := 0
		for _, s := range targets.Summary() {
			total += s.Positives
		}
		assert.Equal(t, 3, total)
		assert.False(t, hasPositiveAt(targets, 0, 1, 1, 1))
		assert.True(t, hasPositiveAt(targets, 0, 7, 10, 2))
	})
}

func hasPositiveAt(targets *Targets, s, i, j, class int) bool {
	for a := 0; a < targets.Scale(s).Shape()[0]; a++ {
		slot := targets.Slot(s, a, i, j)
		if slot.Objectness == Positive && slot.Class == class {
			return true
		}
	}
	return false
}

func TestEncode_AtMostOnePositivePerScale(t *testing.T) {
	encoder, err := NewEncoder(yoloV3Set(t), DefaultOptions())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 200; n++ {
		box := common.Box{
			X:     rng.Float32(),
			Y:     rng.Float32(),
			W:     0.01 + 0.98*rng.Float32(),
			H:     0.01 + 0.98*rng.Float32(),
			Class: rng.Intn(20),
		}
		targets, err := encoder.Encode([]common.Box{box})
		require.NoError(t, err)

		for s, summary := range targets.Summary() {
			require.Equal(t, 1, summary.Positives, "box %v scale %d", box, s)
		}
	}
}

func TestEncode_Idempotent(t *testing.T) {
	encoder, err := NewEncoder(yoloV3Set(t), DefaultOptions())
	require.NoError(t, err)

	boxes := []common.Box{
		{X: 0.3, Y: 0.4, W: 0.2, H: 0.25, Class: 5},
		{X: 0.31, Y: 0.41, W: 0.18, H: 0.22, Class: 6},
		{X: 0.9, Y: 0.1, W: 0.03, H: 0.04, Class: 0},
	}

	a, err := encoder.Encode(boxes)
	require.NoError(t, err)
	b, err := encoder.Encode(boxes)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	for s := 0; s < a.Len(); s++ {
		assert.Equal(t, a.Scale(s).Float32s(), b.Scale(s).Float32s())
	}
}

func TestEncode_InvalidBoxes(t *testing.T) {
	nan := math32.NaN()
	encoder, err := NewEncoder(yoloV3Set(t), DefaultOptions())
	require.NoError(t, err)

	tests := []struct {
		name string
		box  common.Box
	}{
		{"class too large", common.Box{X: 0.5, Y: 0.5, W: 0.1, H: 0.1, Class: 20}},
		{"negative class", common.Box{X: 0.5, Y: 0.5, W: 0.1, H: 0.1, Class: -1}},
		{"zero width", common.Box{X: 0.5, Y: 0.5, W: 0, H: 0.1}},
		{"center outside", common.Box{X: 1.5, Y: 0.5, W: 0.1, H: 0.1}},
		{"nan center", common.Box{X: nan, Y: 0.5, W: 0.2, H: 0.2, Class: 1}},
		{"nan y", common.Box{X: 0.5, Y: nan, W: 0.2, H: 0.2, Class: 1}},
		{"nan width", common.Box{X: 0.5, Y: 0.5, W: nan, H: 0.2, Class: 1}},
		{"infinite width", common.Box{X: 0.5, Y: 0.5, W: math32.Inf(1), H: 0.2, Class: 1}},
		{"infinite height", common.Box{X: 0.5, Y: 0.5, W: 0.2, H: math32.Inf(1), Class: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := encoder.Encode([]common.Box{tt.box})
			assert.ErrorIs(t, err, common.ErrMalformedLabel)
		})
	}
}

func TestCell(t *testing.T) {
	assert.Equal(t, 6, cell(13, 0.5))
	assert.Equal(t, 12, cell(13, 0.999))
	assert.Equal(t, 12, cell(13, 1))
	assert.Equal(t, 0, cell(13, 0))
	assert.Equal(t, 0, cell(13, -0.01))
	assert.Equal(t, 51, cell(52, 0.999))
}

func TestTargets_TensorsOrder(t *testing.T) {
	encoder, err := NewEncoder(yoloV3Set(t), DefaultOptions())
	require.NoError(t, err)

	got, err := encoder.Encode(nil)
	require.NoError(t, err)

	tensors := got.Tensors()
	require.Len(t, tensors, 3)
	for s, size := range []int{13, 26, 52} {
		assert.Equal(t, size, got.GridSize(s))
		assert.Equal(t, []int{3, size, size, SlotSize}, []int(tensors[s].Shape()))
		assert.Same(t, got.Scale(s), tensors[s])
	}
}
