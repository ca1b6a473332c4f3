package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with level-aware sampling. Error and above
// bypass the sampler entirely so failures are never dropped.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	errors := &levelBandCore{Core: core, min: zapcore.ErrorLevel}
	chatter := &levelBandCore{Core: core, max: zapcore.WarnLevel}

	// The zap sampler takes one rate; Info's configured rate governs the
	// whole sub-error band.
	rate := cfg.Levels[zapcore.InfoLevel]
	sampled := zapcore.NewSamplerWithOptions(chatter, cfg.Tick, rate.Initial, rate.Thereafter)

	return zapcore.NewTee(errors, sampled)
}

// levelBandCore restricts a core to a level band. A zero bound means
// unbounded on that side.
type levelBandCore struct {
	zapcore.Core
	min zapcore.Level
	max zapcore.Level
}

func (c *levelBandCore) Enabled(lvl zapcore.Level) bool {
	if c.min != 0 && lvl < c.min {
		return false
	}
	if c.max != 0 && lvl > c.max {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelBandCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelBandCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelBandCore{
		Core: c.Core.With(fields),
		min:  c.min,
		max:  c.max,
	}
}
