// Package augment - image and box transforms applied before target encoding.
package augment

import (
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/images"
)

// Augmenter transforms an image together with its boxes.
//
// Implementations must not modify their inputs in place; callers may reuse them.
type Augmenter interface {
	Apply(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error)
}

// Func adapts a plain function to the Augmenter interface.
type Func func(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error)

// Apply calls f.
func (f Func) Apply(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error) {
	return f(img, boxes)
}

// Identity returns its inputs unchanged.
type Identity struct{}

// Apply returns img and boxes as given.
func (Identity) Apply(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error) {
	return img, boxes, nil
}

// Chain applies augmenters in order, stopping at the first error.
type Chain []Augmenter

// Apply runs every augmenter of the chain.
func (c Chain) Apply(img *images.Image, boxes []common.Box) (*images.Image, []common.Box, error) {
	var err error
	for _, a := range c {
		img, boxes, err = a.Apply(img, boxes)
		if err != nil {
			return nil, nil, err
		}
	}
	return img, boxes, nil
}

// OrIdentity returns a, or Identity when a is nil.
func OrIdentity(a Augmenter) Augmenter {
	if a == nil {
		return Identity{}
	}
	return a
}
