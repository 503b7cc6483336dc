// Package annotations - annotation index files and YOLO label files.
package annotations

import (
	"encoding/csv"
	"io"
	"io/fs"
	"os"

	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/pkg/errors"
)

// Row pairs an image file with its label file, both relative to their directories.
type Row struct {
	// Image is the image file name.
	Image string `json:"image" yaml:"image"`
	// Label is the label file name. Empty means the image has no objects.
	Label string `json:"label" yaml:"label"`
}

// ReadRows reads an annotation index CSV.
//
// The first line is a header and is skipped. Only the first two columns are
// used: image file, then label file. Extra columns are ignored.
//
// Arguments:
//   - path: The CSV file path.
//
// Returns:
//   - []Row: The rows in file order.
//   - error: ErrMissingFile if the file does not exist, ErrMalformedLabel for short rows.
func ReadRows(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(common.ErrMissingFile, "annotations %s", path)
		}
		return nil, errors.Wrapf(err, "open annotations %s", path)
	}
	defer f.Close()

	rows, err := ParseRows(f)
	if err != nil {
		return nil, errors.Wrapf(err, "annotations %s", path)
	}
	return rows, nil
}

// ParseRows reads annotation rows from a CSV stream with a header line.
func ParseRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows := []Row{}
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv")
		}
		if header {
			header = false
			continue
		}
		if len(record) < 2 {
			line, _ := reader.FieldPos(0)
			return nil, errors.Wrapf(common.ErrMalformedLabel, "line %d has %d columns, need 2", line, len(record))
		}
		rows = append(rows, Row{Image: record[0], Label: record[1]})
	}
	return rows, nil
}

// WriteRows writes rows as an annotation index CSV with an "image,text" header.
func WriteRows(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"image", "text"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Image, row.Label}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
