// Package record appends one row per completed trial to the session's CSV
// file.
package record

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

var Header = []string{
	"index", "subject", "first_target", "second_target", "real_switch_time",
	"first_press", "first_press_time", "correct", "prep_time",
}

// Row is one completed trial. NaN marks an absent measurement and is
// written as "nan".
type Row struct {
	Index          int
	Subject        string
	FirstTarget    int
	SecondTarget   int
	RealSwitchTime float64
	FirstPress     int
	HasPress       bool
	FirstPressTime float64
	Correct        bool
	PrepTime       float64
}

func (r Row) fields() []string {
	press := "nan"
	if r.HasPress {
		press = strconv.Itoa(r.FirstPress)
	}
	correct := "0"
	if r.Correct {
		correct = "1"
	}
	return []string{
		strconv.Itoa(r.Index),
		r.Subject,
		strconv.Itoa(r.FirstTarget),
		strconv.Itoa(r.SecondTarget),
		formatFloat(r.RealSwitchTime),
		press,
		formatFloat(r.FirstPressTime),
		correct,
		formatFloat(r.PrepTime),
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Writer is append-only: the header is written when the file is created and
// every row reopens the file in append mode, so a row on disk is never
// rewritten.
type Writer struct {
	path string
	rows int
}

// Create truncates path and writes the header.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "creating trial log")
	}
	if err := writeRecord(f, Header); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "writing trial log header")
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "closing trial log")
	}
	return &Writer{path: path}, nil
}

func (w *Writer) Path() string { return w.path }

// Rows is the number of rows appended so far.
func (w *Writer) Rows() int { return w.rows }

// Append writes one row and syncs it to disk.
func (w *Writer) Append(r Row) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "opening trial log for row %d", r.Index)
	}
	if err := writeRecord(f, r.fields()); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing row %d", r.Index)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "syncing row %d", r.Index)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing trial log after row %d", r.Index)
	}
	w.rows++
	return nil
}

func writeRecord(f *os.File, fields []string) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(fields); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
