// Package dataset - index-addressable training items: image, boxes and encoded targets.
package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-yolo-targets/annotations"
	"github.com/nvr-ai/go-yolo-targets/augment"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/config"
	"github.com/nvr-ai/go-yolo-targets/images"
	"github.com/nvr-ai/go-yolo-targets/targets"
	"github.com/pkg/errors"
)

// ImageLoader loads an image file into RGB pixels.
type ImageLoader interface {
	Load(path string) (*images.Image, error)
}

// LabelReader reads the ground-truth boxes of one label file.
type LabelReader interface {
	Read(path string) ([]common.Box, error)
}

// LabelReaderFunc adapts a function to the LabelReader interface.
type LabelReaderFunc func(path string) ([]common.Box, error)

// Read calls f.
func (f LabelReaderFunc) Read(path string) ([]common.Box, error) {
	return f(path)
}

// Options holds the collaborators of a Dataset. Nil fields fall back to the defaults.
type Options struct {
	// ImageDir is joined in front of every relative image path.
	ImageDir string
	// LabelDir is joined in front of every relative label path.
	LabelDir string
	// Images defaults to images.FileLoader.
	Images ImageLoader
	// Labels defaults to annotations.ReadBoxes.
	Labels LabelReader
	// Augmenter defaults to augment.Identity.
	Augmenter augment.Augmenter
}

// Item is one encoded training example.
type Item struct {
	Image   *images.Image
	Boxes   []common.Box
	Targets *targets.Targets
}

// Dataset maps an index to an encoded Item.
//
// A Dataset only holds immutable state. Get may be called concurrently as long as
// the collaborators are themselves safe for concurrent use, which the defaults are.
type Dataset struct {
	log     logs.Log
	rows    []annotations.Row
	encoder *targets.Encoder

	imageDir  string
	labelDir  string
	images    ImageLoader
	labels    LabelReader
	augmenter augment.Augmenter
}

// New creates a dataset over annotation rows.
//
// Arguments:
//   - log: Receives per-item debug output and warnings.
//   - rows: The (image, label) pairs, addressed by index.
//   - encoder: Turns the boxes of an item into targets.
//   - opts: Directories and collaborators.
//
// Returns:
//   - *Dataset: The dataset.
//   - error: ErrInvalidConfig if log or encoder is nil.
func New(log logs.Log, rows []annotations.Row, encoder *targets.Encoder, opts Options) (*Dataset, error) {
	if log == nil {
		return nil, errors.Wrap(common.ErrInvalidConfig, "dataset needs a logger")
	}
	if encoder == nil {
		return nil, errors.Wrap(common.ErrInvalidConfig, "dataset needs an encoder")
	}

	d := &Dataset{
		log:       log,
		rows:      append([]annotations.Row(nil), rows...),
		encoder:   encoder,
		imageDir:  opts.ImageDir,
		labelDir:  opts.LabelDir,
		images:    opts.Images,
		labels:    opts.Labels,
		augmenter: augment.OrIdentity(opts.Augmenter),
	}
	if d.images == nil {
		d.images = images.FileLoader{}
	}
	if d.labels == nil {
		d.labels = LabelReaderFunc(annotations.ReadBoxes)
	}
	return d, nil
}

// Open builds a dataset from a configuration: it reads cfg.CSVFile, builds the
// encoder, and resizes images when cfg.ImageSize is set. A resize runs before
// opts.Augmenter.
func Open(log logs.Log, cfg *config.Config, opts Options) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.CSVFile == "" {
		return nil, errors.Wrap(common.ErrInvalidConfig, "csv_file is not set")
	}

	rows, err := annotations.ReadRows(cfg.CSVFile)
	if err != nil {
		return nil, err
	}

	encoder, err := cfg.Encoder()
	if err != nil {
		return nil, err
	}

	if opts.ImageDir == "" {
		opts.ImageDir = cfg.ImageDir
	}
	if opts.LabelDir == "" {
		opts.LabelDir = cfg.LabelDir
	}
	if cfg.ImageSize > 0 {
		chain := augment.Chain{augment.NewResize(cfg.ImageSize, cfg.ImageSize)}
		if opts.Augmenter != nil {
			chain = append(chain, opts.Augmenter)
		}
		opts.Augmenter = chain
	}

	log.Infof("Opened %v: %v items", cfg.CSVFile, len(rows))
	return New(log, rows, encoder, opts)
}

// Len returns the number of items.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Row returns the annotation row behind an index.
func (d *Dataset) Row(index int) (annotations.Row, error) {
	if index < 0 || index >= len(d.rows) {
		return annotations.Row{}, errors.Wrapf(common.ErrIndexOutOfRange, "index %d, length %d", index, len(d.rows))
	}
	return d.rows[index], nil
}

// Encoder returns the encoder used by Get.
func (d *Dataset) Encoder() *targets.Encoder {
	return d.encoder
}

// Get loads, augments and encodes the item at index.
//
// Arguments:
//   - index: Position in [0, Len()).
//
// Returns:
//   - *Item: The image, the boxes after augmentation and their targets.
//   - error: ErrIndexOutOfRange, ErrMissingFile, ErrMalformedLabel, or a
//     decode or augmentation failure, wrapped with the item index.
//
// @example
//
//	for i := 0; i < ds.Len(); i++ {
//	    item, err := ds.Get(i)
//	    if err != nil {
//	        return err
//	    }
//	    loss := model.Loss(item.Image, item.Targets.Tensors())
//	}
func (d *Dataset) Get(index int) (*Item, error) {
	row, err := d.Row(index)
	if err != nil {
		return nil, err
	}

	boxes, err := d.readBoxes(row.Label)
	if err != nil {
		return nil, errors.Wrapf(err, "item %d", index)
	}

	img, err := d.images.Load(d.resolve(d.imageDir, row.Image))
	if err != nil {
		return nil, errors.Wrapf(err, "item %d", index)
	}

	augmented, kept, err := d.augmenter.Apply(img, boxes)
	if err != nil {
		return nil, errors.Wrapf(err, "augment item %d", index)
	}
	if len(boxes) > 0 && len(kept) == 0 {
		d.log.Warnf("Item %v (%v): augmentation dropped all %v boxes", index, row.Image, len(boxes))
	}

	t, err := d.encoder.Encode(kept)
	if err != nil {
		return nil, errors.Wrapf(err, "encode item %d", index)
	}

	d.log.Debugf("Item %v (%v): %v boxes, %v", index, row.Image, len(kept), summarize(t.Summary()))

	return &Item{Image: augmented, Boxes: kept, Targets: t}, nil
}

// readBoxes treats an empty label reference as an image with no objects.
func (d *Dataset) readBoxes(label string) ([]common.Box, error) {
	if label == "" {
		return []common.Box{}, nil
	}
	return d.labels.Read(d.resolve(d.labelDir, label))
}

func (d *Dataset) resolve(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func summarize(summary []targets.ScaleSummary) string {
	parts := make([]string, len(summary))
	for i, s := range summary {
		parts[i] = fmt.Sprintf("%dx%d: +%d/-%d", s.GridSize, s.GridSize, s.Positives, s.Ignored)
	}
	return strings.Join(parts, ", ")
}
