package record

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Layout places a subject's files under <dir>/<subject>/.
type Layout struct {
	Dir string
}

// SubjectDir creates and returns the subject's data folder.
func (l Layout) SubjectDir(subject string) (string, error) {
	dir := filepath.Join(l.Dir, subject)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating data directory")
	}
	return dir, nil
}

// SummaryName is id_<subject>_<table>[_adapt]_HHMMSS.csv.
func SummaryName(subject, table string, adaptive bool, now time.Time) string {
	suffix := ""
	if adaptive {
		suffix = "_adapt"
	}
	return fmt.Sprintf("id_%s_%s%s_%s.csv", subject, table, suffix, now.Format("150405"))
}

// CopyTable copies the trial table next to the session data.
func CopyTable(src, dir string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "opening trial table for copy")
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(dir, filepath.Base(src)))
	if err != nil {
		return errors.Wrap(err, "creating trial table copy")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "copying trial table")
	}
	return out.Close()
}

// WriteSnapshot stores v as YAML under dir/name.
func WriteSnapshot(dir, name string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding settings snapshot")
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return errors.Wrap(err, "writing settings snapshot")
	}
	return nil
}
