package curves

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// npyMagic is the NPY format signature.
var npyMagic = []byte("\x93NUMPY")

var npyHeaderRe = regexp.MustCompile(
	`'descr':\s*'([^']+)'.*'fortran_order':\s*(True|False).*'shape':\s*\(([^)]*)\)`)

// loadNPY reads a 2-D NPY array with at least two columns, mapping column 0
// to x and column 1 to y. Structured dtypes and Fortran-ordered arrays are
// not supported; unit canonicalization does not apply (no header names).
func loadNPY(path string) (Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Series{}, fmt.Errorf("read npy: %w", err)
	}
	if len(data) < 10 || string(data[:6]) != string(npyMagic) {
		return Series{}, fmt.Errorf("%w: not an NPY file: %s", ErrUnsupportedFormat, path)
	}

	major := data[6]
	var headerLen, headerStart int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		headerStart = 10
	case 2, 3:
		if len(data) < 12 {
			return Series{}, fmt.Errorf("%w: truncated NPY header", ErrUnsupportedFormat)
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		headerStart = 12
	default:
		return Series{}, fmt.Errorf("%w: NPY version %d", ErrUnsupportedFormat, major)
	}
	if headerStart+headerLen > len(data) {
		return Series{}, fmt.Errorf("%w: truncated NPY header", ErrUnsupportedFormat)
	}

	header := string(data[headerStart : headerStart+headerLen])
	m := npyHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return Series{}, fmt.Errorf("%w: unparsable NPY header", ErrUnsupportedFormat)
	}
	descr, fortran, shapeStr := m[1], m[2], m[3]
	if fortran == "True" {
		return Series{}, fmt.Errorf("%w: fortran-ordered NPY", ErrUnsupportedFormat)
	}

	shape, err := parseShape(shapeStr)
	if err != nil {
		return Series{}, err
	}
	if len(shape) != 2 || shape[1] < 2 {
		return Series{}, fmt.Errorf("%w: NPY shape %v, need (n, >=2)", ErrUnsupportedFormat, shape)
	}
	rows, cols := shape[0], shape[1]

	itemSize, read, err := npyReader(descr)
	if err != nil {
		return Series{}, err
	}

	body := data[headerStart+headerLen:]
	if len(body) < rows*cols*itemSize {
		return Series{}, fmt.Errorf("%w: NPY body shorter than shape implies", ErrUnsupportedFormat)
	}

	var s Series
	for r := 0; r < rows; r++ {
		base := r * cols * itemSize
		s.X = append(s.X, read(body[base:]))
		s.Y = append(s.Y, read(body[base+itemSize:]))
	}
	return finishSeries(s)
}

func parseShape(s string) ([]int, error) {
	var dims []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: NPY shape %q", ErrUnsupportedFormat, s)
		}
		dims = append(dims, n)
	}
	return dims, nil
}

// npyReader returns the item size and a little-endian scalar reader for a
// supported dtype descriptor.
func npyReader(descr string) (int, func([]byte) float64, error) {
	switch descr {
	case "<f8":
		return 8, func(b []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}, nil
	case "<f4":
		return 4, func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}, nil
	case "<i8":
		return 8, func(b []byte) float64 {
			return float64(int64(binary.LittleEndian.Uint64(b)))
		}, nil
	case "<i4":
		return 4, func(b []byte) float64 {
			return float64(int32(binary.LittleEndian.Uint32(b)))
		}, nil
	default:
		return 0, nil, fmt.Errorf("%w: NPY dtype %q", ErrUnsupportedFormat, descr)
	}
}
