package annotations

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/nvr-ai/go-yolo-targets/images"
	"github.com/pkg/errors"
)

// ScanDirectory pairs every image in imageDir with a same-stem ".txt" file in labelDir.
//
// Images without a label file are kept with an empty Label, which a dataset
// treats as an image with no objects. Rows are sorted by image name.
//
// Arguments:
//   - imageDir: Directory path containing image files.
//   - labelDir: Directory path containing label files.
//
// Returns:
//   - []Row: One row per image file.
//   - error: ErrMissingFile if imageDir does not exist.
func ScanDirectory(imageDir, labelDir string) ([]Row, error) {
	files, err := os.ReadDir(imageDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(common.ErrMissingFile, "image directory %s", imageDir)
		}
		return nil, err
	}

	rows := []Row{}
	for _, file := range files {
		if file.IsDir() || !images.IsImagePath(file.Name()) {
			continue
		}

		label := strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())) + ".txt"
		if _, err := os.Stat(filepath.Join(labelDir, label)); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
			label = ""
		}

		rows = append(rows, Row{Image: file.Name(), Label: label})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Image < rows[j].Image
	})

	return rows, nil
}
