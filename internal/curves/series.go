// Package curves loads numeric data series from experiment artifacts and
// compares simulated curves against digitized reference curves. All spectral
// x-axes are canonicalized to nanometers at load time so downstream metrics
// never see mixed units.
package curves

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MinPoints is the fewest samples a usable series may have.
const MinPoints = 3

var (
	ErrTooFewPoints      = errors.New("series has fewer than 3 points")
	ErrLengthMismatch    = errors.New("x and y columns differ in length")
	ErrUnsupportedFormat = errors.New("unsupported series file format")
	ErrNoNumericColumns  = errors.New("no usable numeric columns")
)

// Series is an x-sorted pair of equal-length numeric sequences.
type Series struct {
	X []float64
	Y []float64
}

// Len returns the number of samples.
func (s Series) Len() int { return len(s.X) }

// unitMultipliers maps a header unit suffix to the factor that converts it
// to nanometers. Unrecognized suffixes use identity.
var unitMultipliers = map[string]float64{
	"nm":         1,
	"nanometer":  1,
	"nanometers": 1,
	"um":         1e3,
	"µm":         1e3,
	"micron":     1e3,
	"microns":    1e3,
	"micrometer": 1e3,
	"mm":         1e6,
	"cm":         1e7,
	"m":          1e9,
	"meter":      1e9,
	"meters":     1e9,
	"angstrom":   0.1,
	"å":          0.1,
}

// wavelengthHints are header substrings that mark a column as x-axis-like
// when the caller supplies no explicit hints.
var wavelengthHints = []string{"wavelength", "lambda", "wl", "freq", "energy"}

// LoadSeries reads a series file into an x-sorted Series. Supported formats:
// delimited text with a header row (.csv, .tsv, .txt, .dat) and NPY binary
// arrays (.npy). columnHints, when given, are matched case-insensitively as
// substrings against header names to pick the x and y columns; without a
// hit the wavelength heuristic runs, and failing that columns 0/1 are used.
func LoadSeries(path string, columnHints ...string) (Series, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt", ".dat", "":
		return loadDelimited(path, columnHints)
	case ".npy":
		return loadNPY(path)
	default:
		return Series{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func loadDelimited(path string, hints []string) (Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Series{}, fmt.Errorf("read series: %w", err)
	}

	var rows [][]string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, splitRow(line))
	}
	if len(rows) == 0 {
		return Series{}, fmt.Errorf("%w: empty file %s", ErrUnsupportedFormat, path)
	}

	header, dataRows := splitHeader(rows)
	if len(dataRows) < MinPoints {
		return Series{}, fmt.Errorf("%w: %d in %s", ErrTooFewPoints, len(dataRows), path)
	}

	xCol, yCol := selectColumns(header, hints, len(dataRows[0]))
	if yCol >= len(dataRows[0]) {
		return Series{}, fmt.Errorf("%w in %s", ErrNoNumericColumns, path)
	}

	xMul := 1.0
	if xCol < len(header) {
		xMul = unitMultiplier(header[xCol])
	}

	var s Series
	for i, row := range dataRows {
		if xCol >= len(row) || yCol >= len(row) {
			return Series{}, fmt.Errorf("%w: row %d has %d columns", ErrLengthMismatch, i+1, len(row))
		}
		x, errX := strconv.ParseFloat(row[xCol], 64)
		y, errY := strconv.ParseFloat(row[yCol], 64)
		if errX != nil || errY != nil {
			return Series{}, fmt.Errorf("%w: non-numeric value at row %d of %s", ErrUnsupportedFormat, i+1, path)
		}
		s.X = append(s.X, x*xMul)
		s.Y = append(s.Y, y)
	}
	return finishSeries(s)
}

// splitRow splits on comma, semicolon, tab, or runs of spaces, whichever
// yields the most fields.
func splitRow(line string) []string {
	best := strings.Fields(line)
	for _, sep := range []string{",", ";", "\t"} {
		if parts := strings.Split(line, sep); len(parts) >= len(best) && len(parts) > 1 {
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			best = parts
		}
	}
	return best
}

// splitHeader treats the first row as a header when any of its cells is
// non-numeric.
func splitHeader(rows [][]string) (header []string, data [][]string) {
	for _, cell := range rows[0] {
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return rows[0], rows[1:]
		}
	}
	return nil, rows
}

// selectColumns picks (x, y) column indexes: explicit hints first, then the
// wavelength heuristic, then positions 0/1.
func selectColumns(header, hints []string, width int) (int, int) {
	find := func(needles []string) int {
		for _, n := range needles {
			n = strings.ToLower(n)
			for i, h := range header {
				if strings.Contains(strings.ToLower(h), n) {
					return i
				}
			}
		}
		return -1
	}

	xCol := -1
	if len(hints) > 0 {
		xCol = find(hints[:1])
	}
	if xCol < 0 {
		xCol = find(wavelengthHints)
	}
	if xCol < 0 {
		xCol = 0
	}

	yCol := -1
	if len(hints) > 1 {
		yCol = find(hints[1:2])
	}
	if yCol < 0 {
		// First column that is not x.
		for i := 0; i < width; i++ {
			if i != xCol {
				yCol = i
				break
			}
		}
	}
	if yCol < 0 {
		yCol = width // out of range; caller reports ErrNoNumericColumns
	}
	return xCol, yCol
}

// unitMultiplier extracts a unit suffix from a header cell like
// "wavelength (um)" or "wavelength_nm" and maps it to nanometers.
func unitMultiplier(cell string) float64 {
	cell = strings.ToLower(cell)
	start := strings.LastIndexAny(cell, "(_[ ")
	if start < 0 {
		return 1
	}
	unit := strings.Trim(cell[start+1:], "()[] ")
	if m, ok := unitMultipliers[unit]; ok {
		return m
	}
	return 1
}

// finishSeries sorts by x and enforces the length invariants.
func finishSeries(s Series) (Series, error) {
	if len(s.X) != len(s.Y) {
		return Series{}, fmt.Errorf("%w: %d x, %d y", ErrLengthMismatch, len(s.X), len(s.Y))
	}
	if len(s.X) < MinPoints {
		return Series{}, fmt.Errorf("%w: %d", ErrTooFewPoints, len(s.X))
	}
	idx := make([]int, len(s.X))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.X[idx[a]] < s.X[idx[b]] })

	sorted := Series{X: make([]float64, len(idx)), Y: make([]float64, len(idx))}
	for i, j := range idx {
		sorted.X[i] = s.X[j]
		sorted.Y[i] = s.Y[j]
	}
	return sorted, nil
}
