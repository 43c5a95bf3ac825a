// Package smoke runs the collection smoke routines against a collection
// service: create collections, insert generated entities, build indexes,
// check counts and drop everything again.
package smoke

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/23skdu/longbow-smoke/client"
	"github.com/23skdu/longbow-smoke/internal/datagen"
	lberrors "github.com/23skdu/longbow-smoke/internal/errors"
	"github.com/23skdu/longbow-smoke/internal/metrics"
	"github.com/23skdu/longbow-smoke/internal/storage"
)

const (
	DefaultNB      = 3000
	DefaultDim     = 128
	DefaultTimeout = 2 * time.Minute

	cleanupTimeout = 10 * time.Second
)

// Config controls a smoke run.
type Config struct {
	// NB is the number of entities inserted per collection.
	NB int
	// Dim is the vector dimension. The binary routine needs a multiple of 8.
	Dim int
	// Seed seeds the data generator; zero picks a time-based seed.
	Seed int64
	// Timeout bounds each routine.
	Timeout time.Duration
	// Only restricts the run to the named routines.
	Only []string
	// DataFrameFile, when set, is a parquet file loaded in place of the
	// generated dataframe.
	DataFrameFile string
	// DumpDir, when set, receives a parquet copy of each generated float batch.
	DumpDir string
}

// DefaultConfig returns the sizes the routines were written for.
func DefaultConfig() Config {
	return Config{
		NB:      DefaultNB,
		Dim:     DefaultDim,
		Timeout: DefaultTimeout,
	}
}

// Validate checks sizes and routine names.
func (c Config) Validate() error {
	if c.NB <= 0 {
		return lberrors.NewConfigurationError("smoke", "nb must be positive").WithContext("nb", c.NB)
	}
	if c.Dim <= 0 {
		return lberrors.NewConfigurationError("smoke", "dim must be positive").WithContext("dim", c.Dim)
	}
	if c.Timeout <= 0 {
		return lberrors.NewConfigurationError("smoke", "timeout must be positive")
	}
	known := make(map[string]bool)
	for _, r := range Routines() {
		known[r.Name] = true
	}
	for _, name := range c.Only {
		if !known[name] {
			return lberrors.NewConfigurationError("smoke", "unknown routine").
				WithContext("routine", name).
				WithContext("known", strings.Join(RoutineNames(), ","))
		}
	}
	if c.Dim%8 != 0 && c.selects(routineBinaryIndex) {
		return lberrors.NewConfigurationError("smoke", "dim must be a multiple of 8 for binary vectors").
			WithContext("dim", c.Dim)
	}
	return nil
}

func (c Config) selects(name string) bool {
	if len(c.Only) == 0 {
		return true
	}
	for _, n := range c.Only {
		if n == name {
			return true
		}
	}
	return false
}

// Result is the outcome of one routine.
type Result struct {
	Routine  string
	Duration time.Duration
	Err      error
}

// Report collects the results of a run in execution order.
type Report struct {
	RunID   string
	Started time.Time
	Results []Result
}

// Passed reports whether every routine that ran succeeded.
func (r *Report) Passed() bool {
	return r.Failed() == nil
}

// Failed returns the failing result, if any.
func (r *Report) Failed() *Result {
	for i := range r.Results {
		if r.Results[i].Err != nil {
			return &r.Results[i]
		}
	}
	return nil
}

// Suite runs routines against one client.
type Suite struct {
	client   *client.Client
	cfg      Config
	gen      *datagen.Generator
	mem      memory.Allocator
	logger   zerolog.Logger
	routines []Routine

	// pending holds collections a routine created but has not dropped yet.
	pending map[string]*client.Collection
}

// NewSuite validates cfg and prepares the routines it selects.
func NewSuite(c *client.Client, cfg Config, logger zerolog.Logger) (*Suite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Suite{
		client:  c,
		cfg:     cfg,
		gen:     datagen.New(cfg.Seed),
		mem:     memory.NewGoAllocator(),
		logger:  logger.With().Str("component", "smoke").Logger(),
		pending: make(map[string]*client.Collection),
	}
	for _, r := range Routines() {
		if cfg.selects(r.Name) {
			s.routines = append(s.routines, r)
		}
	}
	return s, nil
}

// Run executes the selected routines in order and stops at the first
// failure, whose error it returns alongside the partial report.
func (s *Suite) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Started: time.Now()}
	logger := s.logger.With().Str("run_id", report.RunID).Logger()

	logger.Info().
		Int("routines", len(s.routines)).
		Int("nb", s.cfg.NB).
		Int("dim", s.cfg.Dim).
		Str("addr", s.client.Addr()).
		Msg("Smoke run started")

	for _, r := range s.routines {
		logger.Info().Str("routine", r.Name).Msg(r.Banner)

		start := time.Now()
		rctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		err := r.Run(rctx, s)
		cancel()
		elapsed := time.Since(start)
		s.cleanup(ctx, logger)

		metrics.SmokeRoutinesTotal.WithLabelValues(r.Name, metrics.Status(err)).Inc()
		metrics.SmokeRoutineDurationSeconds.WithLabelValues(r.Name).Observe(elapsed.Seconds())
		report.Results = append(report.Results, Result{Routine: r.Name, Duration: elapsed, Err: err})

		if err != nil {
			logger.Error().Err(err).Str("routine", r.Name).Dur("elapsed", elapsed).Msg("Routine failed")
			return report, fmt.Errorf("routine %s: %w", r.Name, err)
		}
		logger.Debug().Str("routine", r.Name).Dur("elapsed", elapsed).Msg("Routine passed")
	}

	logger.Info().Msg("test end")
	return report, nil
}

func (s *Suite) track(coll *client.Collection) {
	s.pending[coll.Name()] = coll
}

// drop drops coll and stops tracking it.
func (s *Suite) drop(ctx context.Context, coll *client.Collection) error {
	if err := coll.Drop(ctx); err != nil {
		return callError("drop", err)
	}
	delete(s.pending, coll.Name())
	return nil
}

// cleanup drops whatever the last routine left behind. Failures are logged
// and otherwise ignored.
func (s *Suite) cleanup(ctx context.Context, logger zerolog.Logger) {
	if len(s.pending) == 0 {
		return
	}
	names := make([]string, 0, len(s.pending))
	for name := range s.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		if err := s.pending[name].Drop(cctx); err != nil {
			logger.Warn().Err(err).Str("collection", name).Msg("Cleanup drop failed")
		} else {
			logger.Info().Str("collection", name).Msg("Dropped leftover collection")
		}
		cancel()
		delete(s.pending, name)
	}
}

// floatData generates float entities for collection name and dumps them to
// DumpDir when one is configured.
func (s *Suite) floatData(name string) ([]client.Column, error) {
	cols, err := s.gen.FloatEntities(s.cfg.NB, s.cfg.Dim)
	if err != nil {
		return nil, err
	}
	if s.cfg.DumpDir != "" {
		path, err := storage.DumpEntities(s.cfg.DumpDir, name, cols)
		if err != nil {
			return nil, err
		}
		s.logger.Debug().Str("collection", name).Str("path", path).Msg("Dumped entities")
	}
	return cols, nil
}
