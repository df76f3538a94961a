package logfile_test

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logfile"
	"codeberg.org/mutker/senselog/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestFileName(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	assert.Equal(t, "SenseLog-20240501T093000.csv", logfile.FileName("SenseLog", start))
}

func TestOpenWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.csv")

	w, err := logfile.Open(path)
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, []string{sample.Header}, readLines(t, path))
}

func TestOpenUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := logfile.Open(filepath.Join(blocker, "run.csv"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrLogFileOpen))
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.csv")
	w, err := logfile.Open(path)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	var written []sample.Sample
	const k = 5
	for i := 0; i < k; i++ {
		s := sample.Sample{
			Temperature: sample.Of(50.8 + float64(i)/3),
			Humidity:    sample.Of(58.5),
			Altitude:    sample.Of(-65.25),
			Time:        base.Add(time.Duration(i) * 5 * time.Second),
		}
		require.NoError(t, w.Append(s))
		written = append(written, s)
	}
	assert.Equal(t, k, w.Lines())
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, k+1)
	assert.Equal(t, sample.Header, lines[0])

	for i, s := range written {
		parsed, err := sample.ParseLine(lines[i+1])
		require.NoError(t, err)
		assert.Equal(t, s.Temperature, parsed.Temperature)
		assert.Equal(t, s.Humidity, parsed.Humidity)
		assert.Equal(t, s.Altitude, parsed.Altitude)
		assert.WithinDuration(t, s.Time, parsed.Time, time.Microsecond)
	}
}

func TestAppendAfterClose(t *testing.T) {
	w, err := logfile.Open(filepath.Join(t.TempDir(), "run.csv"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.Append(sample.Sample{Time: time.Now()})
	assert.True(t, errors.HasCode(err, errors.ErrLogFileClosed))
}
