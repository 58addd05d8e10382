package curves

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSeries_CSVWithHeader(t *testing.T) {
	path := writeFile(t, "ext.csv", "wavelength (nm),extinction\n400,0.1\n500,0.9\n600,0.4\n")

	s, err := LoadSeries(path)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	if s.X[0] != 400 || s.Y[1] != 0.9 {
		t.Errorf("unexpected values: %+v", s)
	}
}

func TestLoadSeries_UnitConversion(t *testing.T) {
	path := writeFile(t, "ext.csv", "wavelength (um),ext\n0.4,1\n0.5,2\n0.6,3\n")

	s, err := LoadSeries(path)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if math.Abs(s.X[0]-400) > 1e-9 || math.Abs(s.X[2]-600) > 1e-9 {
		t.Errorf("micrometers not converted to nm: %v", s.X)
	}
}

func TestLoadSeries_UnknownUnitIdentity(t *testing.T) {
	path := writeFile(t, "ext.csv", "wavelength (furlong),ext\n4,1\n5,2\n6,3\n")

	s, err := LoadSeries(path)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.X[0] != 4 {
		t.Errorf("unknown unit should use identity multiplier, got %v", s.X)
	}
}

func TestLoadSeries_ColumnHints(t *testing.T) {
	path := writeFile(t, "out.csv", "step,freq_thz,absorb,reflect\n1,500,0.8,0.1\n2,600,0.7,0.2\n3,700,0.6,0.3\n")

	s, err := LoadSeries(path, "freq", "reflect")
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.X[0] != 500 || s.Y[0] != 0.1 {
		t.Errorf("hints ignored: x=%v y=%v", s.X, s.Y)
	}
}

func TestLoadSeries_WavelengthHeuristic(t *testing.T) {
	path := writeFile(t, "out.csv", "index,lambda_nm,value\n1,400,0.5\n2,500,0.6\n3,600,0.7\n")

	s, err := LoadSeries(path)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.X[0] != 400 {
		t.Errorf("wavelength-like column not chosen as x: %v", s.X)
	}
	if s.Y[0] != 1 {
		// First non-x column (index) becomes y under positional fallback.
		t.Errorf("y column = %v", s.Y)
	}
}

func TestLoadSeries_HeaderlessPositional(t *testing.T) {
	path := writeFile(t, "out.dat", "600 0.3\n400 0.1\n500 0.2\n")

	s, err := LoadSeries(path)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	// Sorted ascending by x.
	if s.X[0] != 400 || s.X[2] != 600 || s.Y[0] != 0.1 {
		t.Errorf("not x-sorted: %+v", s)
	}
}

func TestLoadSeries_SkipsCommentsAndBlankLines(t *testing.T) {
	path := writeFile(t, "out.txt", "# exported by meep\n\n400,1\n500,2\n600,3\n")

	s, err := LoadSeries(path)
	if err != nil {
		t.Fatalf("LoadSeries: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("len = %d, want 3", s.Len())
	}
}

func TestLoadSeries_Errors(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"too few points", "a.csv", "x,y\n1,2\n3,4\n", ErrTooFewPoints},
		{"ragged row", "b.csv", "x,y\n1,2\n3\n5,6\n", ErrLengthMismatch},
		{"unsupported extension", "c.png", "junk", ErrUnsupportedFormat},
		{"non-numeric cell", "d.csv", "x,y\n1,2\n3,oops\n5,6\n", ErrUnsupportedFormat},
		{"single column", "e.csv", "x\n1\n2\n3\n", ErrNoNumericColumns},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, tc.file, tc.content)
			_, err := LoadSeries(path)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
