// Package config - the immutable settings shared by the encoder, dataset and CLI.
package config

import (
	"os"

	"github.com/nvr-ai/go-yolo-targets/anchors"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/targets"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvFile names the environment variable holding the path of the YAML configuration.
const EnvFile = "YOLO_TARGETS_CONFIG"

// Config describes how annotations are located and encoded.
type Config struct {
	// GridSizes holds the grid side length of every scale, in anchor group order.
	// The defaults list the coarsest grid (13) first.
	GridSizes []int `json:"grid_sizes" yaml:"grid_sizes"`
	// NumClasses is the size of the label set.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// Anchors holds one group of normalized templates per scale, in GridSizes order.
	Anchors [][]anchors.Template `json:"anchors" yaml:"anchors"`
	// IgnoreIoUThreshold is the IoU above which a non-chosen anchor is ignored.
	IgnoreIoUThreshold float32 `json:"ignore_iou_threshold" yaml:"ignore_iou_threshold"`

	CSVFile  string `json:"csv_file" yaml:"csv_file"`
	ImageDir string `json:"image_dir" yaml:"image_dir"`
	LabelDir string `json:"label_dir" yaml:"label_dir"`

	// ImageSize resizes every image to ImageSize x ImageSize. Zero leaves images as loaded.
	ImageSize int `json:"image_size" yaml:"image_size"`

	LastBoxOnly       bool `json:"last_box_only" yaml:"last_box_only"`
	OnePositivePerBox bool `json:"one_positive_per_box" yaml:"one_positive_per_box"`
}

// Default returns the YOLOv3 configuration: three scales of 13, 26 and 52 cells,
// 20 classes, the standard anchors rescaled to [0, 1] and a 0.5 ignore threshold.
func Default() *Config {
	opts := targets.DefaultOptions()
	return &Config{
		GridSizes:  opts.GridSizes,
		NumClasses: opts.NumClasses,
		Anchors: [][]anchors.Template{
			{{W: 0.28, H: 0.22}, {W: 0.38, H: 0.48}, {W: 0.9, H: 0.78}},
			{{W: 0.07, H: 0.15}, {W: 0.15, H: 0.11}, {W: 0.14, H: 0.29}},
			{{W: 0.02, H: 0.03}, {W: 0.04, H: 0.07}, {W: 0.08, H: 0.06}},
		},
		IgnoreIoUThreshold: opts.IgnoreIoUThreshold,
		ImageDir:           "images",
		LabelDir:           "labels",
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep their default value.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: ErrMissingFile, a YAML syntax error, or ErrInvalidConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(common.ErrMissingFile, "config %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write config %s", path)
	}
	return nil
}

// Validate checks that the configuration can build an encoder.
func (c *Config) Validate() error {
	if len(c.GridSizes) == 0 {
		return errors.Wrap(common.ErrInvalidConfig, "grid_sizes is empty")
	}
	for _, s := range c.GridSizes {
		if s <= 0 {
			return errors.Wrapf(common.ErrInvalidConfig, "grid size %d must be positive", s)
		}
	}
	if c.NumClasses <= 0 {
		return errors.Wrapf(common.ErrInvalidConfig, "num_classes %d must be positive", c.NumClasses)
	}
	if c.IgnoreIoUThreshold < 0 || c.IgnoreIoUThreshold > 1 {
		return errors.Wrapf(common.ErrInvalidConfig,
			"ignore_iou_threshold %v outside [0, 1]", c.IgnoreIoUThreshold)
	}
	if len(c.Anchors) != len(c.GridSizes) {
		return errors.Wrapf(common.ErrInvalidConfig,
			"%d anchor groups for %d grid sizes", len(c.Anchors), len(c.GridSizes))
	}
	if c.ImageSize < 0 {
		return errors.Wrapf(common.ErrInvalidConfig, "image_size %d is negative", c.ImageSize)
	}
	if _, err := anchors.NewSet(c.Anchors); err != nil {
		return err
	}
	return nil
}

// AnchorSet builds the anchor set described by the configuration.
func (c *Config) AnchorSet() (*anchors.Set, error) {
	return anchors.NewSet(c.Anchors)
}

// EncoderOptions returns the encoder settings carried by the configuration.
func (c *Config) EncoderOptions() targets.Options {
	return targets.Options{
		GridSizes:          append([]int(nil), c.GridSizes...),
		NumClasses:         c.NumClasses,
		IgnoreIoUThreshold: c.IgnoreIoUThreshold,
		LastBoxOnly:        c.LastBoxOnly,
		OnePositivePerBox:  c.OnePositivePerBox,
	}
}

// Encoder builds a target encoder from the configuration.
func (c *Config) Encoder() (*targets.Encoder, error) {
	set, err := c.AnchorSet()
	if err != nil {
		return nil, err
	}
	return targets.NewEncoder(set, c.EncoderOptions())
}
