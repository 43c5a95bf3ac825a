package smoke

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/longbow-smoke/client"
	lberrors "github.com/23skdu/longbow-smoke/internal/errors"
	"github.com/23skdu/longbow-smoke/internal/logging"
	"github.com/23skdu/longbow-smoke/internal/metrics"
	"github.com/23skdu/longbow-smoke/internal/schemas"
	"github.com/23skdu/longbow-smoke/internal/storage"
	"github.com/23skdu/longbow-smoke/internal/store"
)

func testConfig() Config {
	return Config{NB: 200, Dim: 16, Seed: 7, Timeout: time.Minute}
}

func connect(t *testing.T) *client.Client {
	t.Helper()
	srv, err := store.StartEmbedded("127.0.0.1:0", memory.NewGoAllocator(), logging.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	c, err := client.Connect(context.Background(), srv.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func remaining(t *testing.T, c *client.Client) []string {
	t.Helper()
	names, err := c.ListCollections(context.Background())
	require.NoError(t, err)
	return names
}

func TestRunAllRoutines(t *testing.T) {
	c := connect(t)
	before := testutil.ToFloat64(metrics.SmokeRoutinesTotal.WithLabelValues(routineCreateCollection, "ok"))

	s, err := NewSuite(c, testConfig(), logging.DiscardLogger())
	require.NoError(t, err)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed())
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Results, len(Routines()))
	for i, r := range report.Results {
		assert.Equal(t, RoutineNames()[i], r.Routine)
		assert.NoError(t, r.Err)
	}

	assert.Empty(t, remaining(t, c), "every routine drops its collections")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SmokeRoutinesTotal.WithLabelValues(routineCreateCollection, "ok")))
}

func TestRunOnly(t *testing.T) {
	c := connect(t)
	cfg := testConfig()
	cfg.Only = []string{routineBinaryIndex, routineCreateCollection}

	s, err := NewSuite(c, cfg, logging.DiscardLogger())
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, routineCreateCollection, report.Results[0].Routine)
	assert.Equal(t, routineBinaryIndex, report.Results[1].Routine)
}

func TestSearchRoutineAtDefaultSize(t *testing.T) {
	if testing.Short() {
		t.Skip("inserts 3000x128 vectors per seed")
	}
	c := connect(t)

	for _, seed := range []int64{1, 2, 3} {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Seed = seed
			cfg.Only = []string{routineSearch}

			s, err := NewSuite(c, cfg, logging.DiscardLogger())
			require.NoError(t, err)
			report, err := s.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Results, 1)
			assert.NoError(t, report.Results[0].Err)
		})
	}
	assert.Empty(t, remaining(t, c))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nb", func(c *Config) { c.NB = 0 }},
		{"dim", func(c *Config) { c.Dim = -1 }},
		{"timeout", func(c *Config) { c.Timeout = 0 }},
		{"unknown routine", func(c *Config) { c.Only = []string{"nope"} }},
		{"binary dim", func(c *Config) { c.Dim = 12 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, lberrors.IsType(err, lberrors.ErrorTypeConfiguration))
		})
	}

	cfg := testConfig()
	cfg.Dim = 12
	cfg.Only = []string{routineCreateCollection}
	assert.NoError(t, cfg.Validate(), "odd dims are fine without the binary routine")
	assert.NoError(t, DefaultConfig().Validate())
}

func TestRunHaltsOnFirstFailure(t *testing.T) {
	c := connect(t)
	cfg := testConfig()
	cfg.DataFrameFile = filepath.Join(t.TempDir(), "missing.parquet")

	s, err := NewSuite(c, cfg, logging.DiscardLogger())
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), routineDataFrame)

	require.Len(t, report.Results, 3)
	failed := report.Failed()
	require.NotNil(t, failed)
	assert.Equal(t, routineDataFrame, failed.Routine)
	assert.False(t, report.Passed())
}

func TestFailedRoutineCollectionIsDropped(t *testing.T) {
	c := connect(t)
	s, err := NewSuite(c, testConfig(), logging.DiscardLogger())
	require.NoError(t, err)

	s.routines = []Routine{{
		Name:   "always_fails",
		Banner: "test failure",
		Run: func(ctx context.Context, s *Suite) error {
			if _, err := s.create(ctx, schemas.Default(16)); err != nil {
				return err
			}
			return expectEqual("always_fails", "num_entities", int64(1), int64(0))
		},
	}}

	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, lberrors.IsType(err, lberrors.ErrorTypeAssertion))
	assert.Empty(t, remaining(t, c))
}

func TestDumpAndLoadDataFrame(t *testing.T) {
	c := connect(t)
	dir := t.TempDir()

	cfg := testConfig()
	cfg.DumpDir = dir
	cfg.Only = []string{routineOnlyName}
	s, err := NewSuite(c, cfg, logging.DiscardLogger())
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	dumps, err := filepath.Glob(filepath.Join(dir, "collection_*.parquet"))
	require.NoError(t, err)
	require.Len(t, dumps, 1)
	cols, err := storage.ReadEntities(dumps[0])
	require.NoError(t, err)
	assert.Equal(t, 200, cols[0].Len())

	cfg = testConfig()
	cfg.DataFrameFile = dumps[0]
	cfg.Only = []string{routineDataFrame}
	s, err = NewSuite(c, cfg, logging.DiscardLogger())
	require.NoError(t, err)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed())

	_, err = os.Stat(dumps[0])
	assert.NoError(t, err)
}
