// Package common - shared annotation types and error sentinels.
package common

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Box is a ground-truth bounding box in normalized, center-based coordinates.
//
// All spatial values are fractions of the image size, so a box covering the
// whole image is {X: 0.5, Y: 0.5, W: 1, H: 1}.
type Box struct {
	// X is the horizontal center of the box.
	X float32 `json:"x" yaml:"x"`
	// Y is the vertical center of the box.
	Y float32 `json:"y" yaml:"y"`
	// W is the width of the box.
	W float32 `json:"w" yaml:"w"`
	// H is the height of the box.
	H float32 `json:"h" yaml:"h"`
	// Class is the label index of the box.
	Class int `json:"class" yaml:"class"`
}

// String formats the box for display.
//
// @example
// box := Box{X: 0.5, Y: 0.5, W: 0.1, H: 0.2, Class: 3}
// fmt.Println(box.String()) // Output: Box class 3: center (0.500000, 0.500000), size 0.100000x0.200000
func (b Box) String() string {
	return fmt.Sprintf("Box class %d: center (%f, %f), size %fx%f", b.Class, b.X, b.Y, b.W, b.H)
}

// Corners returns the top-left and bottom-right corners of the box, still normalized.
//
// Returns:
// - x1, y1: The top-left corner.
// - x2, y2: The bottom-right corner.
func (b Box) Corners() (x1, y1, x2, y2 float32) {
	return b.X - b.W/2, b.Y - b.H/2, b.X + b.W/2, b.Y + b.H/2
}

// Area returns the normalized area of the box.
func (b Box) Area() float32 {
	return b.W * b.H
}

// Validate checks that the box has a finite positive size and a class inside [0, numClasses).
//
// Arguments:
// - numClasses: The size of the label set. Values <= 0 skip the class check.
//
// Returns:
// - An error wrapping ErrMalformedLabel if the box is unusable, nil otherwise.
func (b Box) Validate(numClasses int) error {
	if !(b.W > 0 && b.H > 0) || math32.IsInf(b.W, 0) || math32.IsInf(b.H, 0) {
		return errors.Wrapf(ErrMalformedLabel, "size %vx%v is not finite and positive", b.W, b.H)
	}
	if b.Class < 0 || (numClasses > 0 && b.Class >= numClasses) {
		return errors.Wrapf(ErrMalformedLabel, "class %d outside [0, %d)", b.Class, numClasses)
	}
	return nil
}
