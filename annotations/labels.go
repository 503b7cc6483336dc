package annotations

import (
	"bufio"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-yolo-targets/common"
	"github.com/pkg/errors"
)

// labelColumns is the number of values in a YOLO label row: class x y w h.
const labelColumns = 5

// ReadBoxes reads a YOLO label file.
//
// Each non-empty line holds "class x y w h" separated by whitespace. The class
// column moves to the end, so the result is (x, y, w, h, class) per box.
// Lines starting with '#' are comments.
//
// Arguments:
//   - path: The label file path.
//
// Returns:
//   - []common.Box: The boxes in file order. An empty file yields no boxes.
//   - error: ErrMissingFile if the file does not exist, ErrMalformedLabel for bad rows.
//
// @example
// boxes, err := ReadBoxes("labels/000001.txt")
//
//	if err != nil {
//	    return err
//	}
func ReadBoxes(path string) ([]common.Box, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(common.ErrMissingFile, "label %s", path)
		}
		return nil, errors.Wrapf(err, "open label %s", path)
	}
	defer f.Close()

	boxes, err := ParseBoxes(f)
	if err != nil {
		return nil, errors.Wrapf(err, "label %s", path)
	}
	return boxes, nil
}

// ParseBoxes parses YOLO label rows from a stream.
func ParseBoxes(r io.Reader) ([]common.Box, error) {
	boxes := []common.Box{}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		box, err := parseBox(text)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		boxes = append(boxes, box)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return boxes, nil
}

func parseBox(text string) (common.Box, error) {
	fields := strings.Fields(text)
	if len(fields) != labelColumns {
		return common.Box{}, errors.Wrapf(common.ErrMalformedLabel, "%d columns, need %d", len(fields), labelColumns)
	}

	values := make([]float64, labelColumns)
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return common.Box{}, errors.Wrapf(common.ErrMalformedLabel, "column %d: %q is not a finite number", i, field)
		}
		values[i] = v
	}

	class := values[0]
	if class != math.Trunc(class) || class < 0 {
		return common.Box{}, errors.Wrapf(common.ErrMalformedLabel, "class %v is not a non-negative integer", class)
	}

	return common.Box{
		X:     float32(values[1]),
		Y:     float32(values[2]),
		W:     float32(values[3]),
		H:     float32(values[4]),
		Class: int(class),
	}, nil
}
