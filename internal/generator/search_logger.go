package generator

import (
	"time"

	"go.uber.org/zap"

	"lvcagen/internal/core"
	"lvcagen/internal/util"
)

// SearchLogger logs progress during a covering search.
type SearchLogger struct {
	logger   *zap.Logger
	target   *core.Target
	progress *util.ProgressLogger
	covered  int
	timer    time.Time
	enabled  bool
}

// NewSearchLogger creates a logger that reports coverage of target.
func NewSearchLogger(logger *zap.Logger, target *core.Target, enabled bool) *SearchLogger {
	return &SearchLogger{
		logger:   logger,
		target:   target,
		progress: util.NewProgressLogger(logger, uint64(target.Size()), "coverage", enabled),
		enabled:  enabled,
	}
}

// Init starts the timer and logs the start message.
func (sl *SearchLogger) Init() {
	sl.timer = time.Now()
	if !sl.enabled {
		return
	}
	sl.logger.Debug("search start",
		zap.Int("feasible", sl.target.Size()),
		zap.Int("slots", sl.target.TotalSlots()),
		zap.Int("lower_bound", core.LowerBound(sl.target.Params())))
}

// Update records the current number of covered combinations. Coverage may
// go down during annealing; only increases are reported.
func (sl *SearchLogger) Update(covered int) {
	if covered > sl.covered {
		sl.progress.Add(uint64(covered - sl.covered))
		sl.covered = covered
	}
}

// Finalize logs the end message and summary statistics.
func (sl *SearchLogger) Finalize(res *Result) {
	if !sl.enabled || res == nil {
		return
	}
	sl.progress.Finalize()
	sl.logger.Debug("search end",
		zap.Int("rows", len(res.Rows)),
		zap.Int("steps", res.Steps),
		zap.Float64("coverage", res.Coverage),
		zap.Bool("complete", res.Complete),
		zap.Duration("elapsed", time.Since(sl.timer)))
}
