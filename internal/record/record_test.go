package record

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := Create(path)
	require.NoError(t, err)

	require.NoError(t, w.Append(Row{
		Index: 0, Subject: "001", FirstTarget: 0, SecondTarget: 4,
		RealSwitchTime: 1.05, FirstPress: 4, HasPress: true,
		FirstPressTime: 1.31, Correct: true, PrepTime: 0.26,
	}))
	require.NoError(t, w.Append(Row{
		Index: 1, Subject: "001", FirstTarget: 4, SecondTarget: 4,
		RealSwitchTime: 1.3, FirstPressTime: math.NaN(), PrepTime: math.NaN(),
	}))
	assert.Equal(t, 2, w.Rows())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(Header, ","), lines[0])
	assert.Equal(t, "0,001,0,4,1.050000,4,1.310000,1,0.260000", lines[1])
	assert.Equal(t, "1,001,4,4,1.300000,nan,nan,0,nan", lines[2])
}

func TestCreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))
	_, err := Create(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Header, ",")+"\n", string(data))
}

func TestAppendFailsWhenFileIsGone(t *testing.T) {
	dir := t.TempDir()
	w, err := Create(filepath.Join(dir, "out.csv"))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = w.Append(Row{Index: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Equal(t, 0, w.Rows())
}

func TestCreateFailsInMissingDir(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "out.csv"))
	assert.Error(t, err)
}

func TestSummaryName(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 56, 28, 0, time.UTC)
	assert.Equal(t, "id_001_block1_105628.csv", SummaryName("001", "block1", false, now))
	assert.Equal(t, "id_001_block1_adapt_105628.csv", SummaryName("001", "block1", true, now))
}

func TestLayoutAndCopies(t *testing.T) {
	root := t.TempDir()
	dir, err := Layout{Dir: root}.SubjectDir("007")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	table := filepath.Join(root, "block2.csv")
	require.NoError(t, os.WriteFile(table, []byte("first,second,switch_time\n"), 0o644))
	require.NoError(t, CopyTable(table, dir))
	assert.FileExists(t, filepath.Join(dir, "block2.csv"))

	require.NoError(t, WriteSnapshot(dir, "settings.yaml", map[string]any{"subject": "s07"}))
	data, err := os.ReadFile(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "subject: s07")
}
