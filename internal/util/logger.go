package util

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Verbose enables debug output.
func NewLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// OrNop returns logger, or a no-op logger if it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// ProgressLogger tracks and reports progress towards a total.
type ProgressLogger struct {
	logger         *zap.Logger
	totalEvents    uint64
	prefix         string
	loggedEvents   uint64
	logStep        uint64
	nextEventToLog uint64
	enabled        bool
	startTime      time.Time
	lastUpdateTime time.Time
	minInterval    time.Duration
}

// NewProgressLogger creates a new progress logger.
func NewProgressLogger(logger *zap.Logger, totalEvents uint64, prefix string, enable bool) *ProgressLogger {
	pl := &ProgressLogger{
		logger:      OrNop(logger),
		totalEvents: totalEvents,
		prefix:      prefix,
		enabled:     enable,
		startTime:   time.Now(),
		minInterval: 100 * time.Millisecond,
	}

	percFraction := uint64(20) // Default to 5% steps
	if totalEvents >= 100_000_000 {
		percFraction = 100 // 1% steps for large counts
	}
	pl.logStep = (totalEvents + percFraction - 1) / percFraction
	if pl.logStep == 0 {
		pl.logStep = 1
	}

	if enable {
		pl.nextEventToLog = pl.logStep
	} else {
		pl.nextEventToLog = ^uint64(0) // Effectively disable updates if !enable
	}
	return pl
}

// Add records delta more events and reports when a step is crossed.
func (pl *ProgressLogger) Add(delta uint64) {
	if !pl.enabled || delta == 0 {
		return
	}
	pl.loggedEvents += delta
	if pl.loggedEvents >= pl.nextEventToLog {
		pl.update(false)
		for pl.nextEventToLog <= pl.loggedEvents {
			pl.nextEventToLog += pl.logStep
		}
	}
}

// Done returns the number of events recorded so far.
func (pl *ProgressLogger) Done() uint64 {
	return pl.loggedEvents
}

// Finalize reports the final progress and elapsed time.
func (pl *ProgressLogger) Finalize() {
	if !pl.enabled {
		return
	}
	pl.update(true)
}

func (pl *ProgressLogger) update(final bool) {
	now := time.Now()
	if !final && now.Sub(pl.lastUpdateTime) < pl.minInterval {
		return
	}
	pl.lastUpdateTime = now

	perc := 100.0
	if pl.totalEvents > 0 {
		perc = 100 * float64(pl.loggedEvents) / float64(pl.totalEvents)
	}
	fields := []zap.Field{
		zap.Uint64("done", pl.loggedEvents),
		zap.Uint64("total", pl.totalEvents),
		zap.String("percent", fmt.Sprintf("%.2f%%", perc)),
	}
	if final {
		fields = append(fields, zap.Duration("elapsed", time.Since(pl.startTime)))
	}
	pl.logger.Debug(pl.prefix, fields...)
}
