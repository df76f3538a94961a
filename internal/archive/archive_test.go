package archive

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logger"
	"codeberg.org/mutker/senselog/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		DBPath:       filepath.Join(t.TempDir(), "data", "samples.db"),
		BatchSize:    3,
		BatchTimeout: time.Hour,
		Enabled:      true,
	}
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&n))
	return n
}

func TestNewServiceDisabled(t *testing.T) {
	c, err := NewService(Config{})
	require.NoError(t, err)
	assert.IsType(t, &noopCollector{}, c)
	assert.NoError(t, c.Record(context.Background(), sample.Sample{}))
	assert.NoError(t, c.Close())
}

func TestNewServiceInvalidConfig(t *testing.T) {
	_, err := NewService(Config{Enabled: true, BatchSize: 1})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
}

func TestRecordFlushesOnCloseAndBatch(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewService(cfg)
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		s := sample.Sample{
			Temperature: sample.Of(68),
			Humidity:    sample.Of(50),
			Time:        base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, c.Record(context.Background(), s))
	}

	// The first batch of three is already on disk.
	assert.Equal(t, 3, countRows(t, cfg.DBPath))

	require.NoError(t, c.Close())
	assert.Equal(t, 5, countRows(t, cfg.DBPath))
	assert.NoError(t, c.Close(), "close is idempotent")
}

func TestRecordStoresAbsentFieldsAsNull(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 1
	repo, err := NewRepository(cfg, logger.New("test"))
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	require.NoError(t, repo.Record(sample.Sample{Temperature: sample.Of(70.5), Time: ts}))
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	var (
		stamp    int64
		temp     sql.NullFloat64
		humidity sql.NullFloat64
		altitude sql.NullFloat64
	)
	err = db.QueryRow("SELECT timestamp, temperature, humidity, altitude FROM samples").
		Scan(&stamp, &temp, &humidity, &altitude)
	require.NoError(t, err)

	assert.Equal(t, ts.UnixNano(), stamp)
	assert.True(t, temp.Valid)
	assert.InDelta(t, 70.5, temp.Float64, 1e-9)
	assert.False(t, humidity.Valid)
	assert.False(t, altitude.Valid)
}

func TestRecordCancelledContext(t *testing.T) {
	c, err := NewService(testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Record(ctx, sample.Sample{Time: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 1

	repo, err := NewRepository(cfg, logger.New("test"))
	require.NoError(t, err)
	require.NoError(t, repo.Record(sample.Sample{Altitude: sample.Of(364), Time: time.Now()}))
	require.NoError(t, repo.Close())

	repo, err = NewRepository(cfg, logger.New("test"))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	assert.Equal(t, 1, countRows(t, cfg.DBPath))
}
