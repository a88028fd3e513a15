// Package trial holds the trial table: the ordered stimulus pairs and switch
// times a session walks through.
package trial

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Spec is one row of the trial table. SwitchTime is measured backward from
// the final metronome click; zero means the first stimulus persists.
type Spec struct {
	First      int
	Second     int
	SwitchTime float64
}

// IsSwitch reports whether the second stimulus differs from the first.
func (s Spec) IsSwitch() bool { return s.First != s.Second }

var Columns = []string{"first", "second", "switch_time"}

// Table is loaded once and shared read-only.
type Table struct {
	Name  string
	specs []Spec
}

func NewTable(name string, specs []Spec) *Table {
	return &Table{Name: name, specs: append([]Spec(nil), specs...)}
}

func (t *Table) Len() int { return len(t.specs) }

// At returns row i. Indices past the end resolve to the last row so that
// callers evaluating guards never index out of range.
func (t *Table) At(i int) Spec {
	if len(t.specs) == 0 {
		return Spec{}
	}
	if i < 0 {
		i = 0
	}
	if i >= len(t.specs) {
		i = len(t.specs) - 1
	}
	return t.specs[i]
}

// MaxStimulus is the largest id in either column.
func (t *Table) MaxStimulus() int {
	max := math.MinInt
	for _, s := range t.specs {
		if s.First > max {
			max = s.First
		}
		if s.Second > max {
			max = s.Second
		}
	}
	return max
}

// FirstStimuli returns the distinct "first" ids in ascending order.
func (t *Table) FirstStimuli() []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range t.specs {
		if !seen[s.First] {
			seen[s.First] = true
			out = append(out, s.First)
		}
	}
	sort.Ints(out)
	return out
}

// Load reads a trial table from a CSV file with a first,second,switch_time
// header.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening trial table")
	}
	defer f.Close()

	specs, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading trial table %s", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return NewTable(name, specs), nil
}

// Parse decodes table rows. Column order follows the header; extra columns
// are ignored.
func Parse(r io.Reader) ([]Spec, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty trial table")
	}

	idx := map[string]int{}
	for i, name := range records[0] {
		idx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, errors.Errorf("line 1: missing column %q", col)
		}
	}

	var specs []Spec
	for i, record := range records[1:] {
		line := i + 2
		first, err := parseStimulus(record, idx["first"])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid first", line)
		}
		second, err := parseStimulus(record, idx["second"])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid second", line)
		}
		sw, err := parseFloat(record, idx["switch_time"])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid switch_time", line)
		}
		if sw < 0 || math.IsNaN(sw) || math.IsInf(sw, 0) {
			return nil, errors.Errorf("line %d: switch_time %v is not a non-negative time", line, sw)
		}
		specs = append(specs, Spec{First: first, Second: second, SwitchTime: sw})
	}
	if len(specs) == 0 {
		return nil, errors.New("trial table has no rows")
	}
	return specs, nil
}

// Stimulus ids are written as floats by the block generators ("4.0000").
func parseStimulus(record []string, i int) (int, error) {
	v, err := parseFloat(record, i)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("stimulus id %v is not whole", v)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errors.Errorf("stimulus id %v out of range", v)
	}
	return int(v), nil
}

func parseFloat(record []string, i int) (float64, error) {
	if i >= len(record) {
		return 0, errors.New("missing field")
	}
	return strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
}
