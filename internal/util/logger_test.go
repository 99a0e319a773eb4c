package util

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestProgressLoggerReportsSteps(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pl := NewProgressLogger(zap.New(core), 100, "coverage", true)
	pl.minInterval = 0

	for i := 0; i < 100; i++ {
		pl.Add(1)
	}
	pl.Finalize()

	if pl.Done() != 100 {
		t.Fatalf("Done() = %d, want 100", pl.Done())
	}
	// 20 step updates (every 5%) plus the final line.
	if got := logs.FilterMessage("coverage").Len(); got != 21 {
		t.Errorf("expected 21 progress lines, got %d", got)
	}
}

func TestProgressLoggerDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	pl := NewProgressLogger(zap.New(core), 10, "coverage", false)
	pl.Add(10)
	pl.Finalize()
	if logs.Len() != 0 {
		t.Errorf("disabled logger wrote %d lines", logs.Len())
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatalf("OrNop(nil) should return a usable logger")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Errorf("OrNop should pass through a non-nil logger")
	}
}

func TestRandomSeedNonNegative(t *testing.T) {
	for i := 0; i < 10; i++ {
		if s := RandomSeed(); s < 0 {
			t.Fatalf("RandomSeed() = %d, want >= 0", s)
		}
	}
}
