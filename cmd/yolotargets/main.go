package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-yolo-targets/annotations"
	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/config"
	"github.com/nvr-ai/go-yolo-targets/dataset"
	"github.com/nvr-ai/go-yolo-targets/images/cv"
	"github.com/nvr-ai/go-yolo-targets/targets"
	"github.com/pkg/errors"
)

// flags holds the command line overrides applied on top of the YAML configuration.
type flags struct {
	configFile  string
	csvFile     string
	imageDir    string
	labelDir    string
	imageSize   int
	lastBoxOnly bool
	useOpenCV   bool
}

// itemReport is the JSON form of one encoded item.
type itemReport struct {
	Index   int                    `json:"index"`
	Image   string                 `json:"image"`
	Width   int                    `json:"width"`
	Height  int                    `json:"height"`
	Boxes   []common.Box           `json:"boxes"`
	Summary []targets.ScaleSummary `json:"summary"`
}

func main() {
	logger, err := logs.NewLog()
	if err != nil {
		panic(err)
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	parser := argparse.NewParser("yolotargets", "Encode YOLO annotations into multi-scale training targets")
	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file (default $" + config.EnvFile + ")"})
	csvFile := parser.String("", "csv", &argparse.Options{Help: "Annotation index CSV (image,label)"})
	imageDir := parser.String("", "images", &argparse.Options{Help: "Image directory"})
	labelDir := parser.String("", "labels", &argparse.Options{Help: "Label directory"})
	imageSize := parser.Int("s", "size", &argparse.Options{Help: "Resize images to size x size before encoding", Default: 0})
	index := parser.Int("i", "index", &argparse.Options{Help: "Item to encode", Default: 0})
	all := parser.Flag("a", "all", &argparse.Options{Help: "Encode every item", Default: false})
	jsonOut := parser.Flag("j", "json", &argparse.Options{Help: "Print item reports as JSON lines", Default: false})
	lastBoxOnly := parser.Flag("", "last-box-only", &argparse.Options{Help: "Encode only the final box of each image", Default: false})
	useOpenCV := parser.Flag("", "opencv", &argparse.Options{Help: "Decode images with OpenCV", Default: false})
	scan := parser.Flag("", "scan", &argparse.Options{Help: "Write the --csv index by pairing files in --images and --labels, then exit", Default: false})
	err = parser.Parse(os.Args)
	if err != nil {
		logger.Errorf("%v", parser.Usage(err))
		os.Exit(1)
	}

	f := flags{
		configFile:  *configFile,
		csvFile:     *csvFile,
		imageDir:    *imageDir,
		labelDir:    *labelDir,
		imageSize:   *imageSize,
		lastBoxOnly: *lastBoxOnly,
		useOpenCV:   *useOpenCV,
	}
	if f.configFile == "" {
		f.configFile = os.Getenv(config.EnvFile)
	}

	cfg, err := buildConfig(f)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	if *scan {
		if err := writeIndex(logger, cfg); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	opts := dataset.Options{}
	if f.useOpenCV {
		opts.Images = cv.Loader{}
		if cfg.ImageSize > 0 {
			opts.Augmenter = cv.NewResize(cfg.ImageSize, cfg.ImageSize)
			cfg.ImageSize = 0
		}
	}
	ds, err := dataset.Open(logger, cfg, opts)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	first, last := *index, *index+1
	if *all {
		first, last = 0, ds.Len()
	}
	for i := first; i < last; i++ {
		if err := encodeItem(logger, ds, i, *jsonOut, os.Stdout); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
	}
}

// buildConfig starts from the defaults, reads the YAML file if one is named, then applies flags.
func buildConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.csvFile != "" {
		cfg.CSVFile = f.csvFile
	}
	if f.imageDir != "" {
		cfg.ImageDir = f.imageDir
	}
	if f.labelDir != "" {
		cfg.LabelDir = f.labelDir
	}
	if f.imageSize != 0 {
		cfg.ImageSize = f.imageSize
	}
	if f.lastBoxOnly {
		cfg.LastBoxOnly = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeIndex pairs images with labels and writes the CSV index named by cfg.CSVFile.
func writeIndex(log logs.Log, cfg *config.Config) error {
	if cfg.CSVFile == "" {
		return errors.Wrap(common.ErrInvalidConfig, "--scan needs --csv")
	}

	rows, err := annotations.ScanDirectory(cfg.ImageDir, cfg.LabelDir)
	if err != nil {
		return err
	}

	out, err := os.Create(cfg.CSVFile)
	if err != nil {
		return errors.Wrapf(err, "create %s", cfg.CSVFile)
	}
	if err := annotations.WriteRows(out, rows); err != nil {
		out.Close()
		return errors.Wrapf(err, "write %s", cfg.CSVFile)
	}
	if err := out.Close(); err != nil {
		return errors.Wrapf(err, "close %s", cfg.CSVFile)
	}

	unlabeled := 0
	for _, row := range rows {
		if row.Label == "" {
			unlabeled++
		}
	}
	log.Infof("Wrote %v rows to %v (%v without labels)", len(rows), cfg.CSVFile, unlabeled)
	return nil
}

// encodeItem encodes one item and reports it as a log line or a JSON line on w.
func encodeItem(log logs.Log, ds *dataset.Dataset, index int, asJSON bool, w io.Writer) error {
	item, err := ds.Get(index)
	if err != nil {
		return err
	}

	report := itemReport{
		Index:   index,
		Image:   item.Image.Path,
		Width:   item.Image.Width,
		Height:  item.Image.Height,
		Boxes:   item.Boxes,
		Summary: item.Targets.Summary(),
	}

	if asJSON {
		return json.NewEncoder(w).Encode(report)
	}

	log.Infof("Item %v: %v (%vx%v), %v boxes", index, report.Image, report.Width, report.Height, len(report.Boxes))
	for s, summary := range report.Summary {
		log.Infof("  scale %v (%vx%v): %v positive, %v ignored", s, summary.GridSize, summary.GridSize, summary.Positives, summary.Ignored)
	}
	return nil
}
