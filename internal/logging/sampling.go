package logging

import "go.uber.org/zap/zapcore"

// newSampledCore samples entries below Error by message. Error and above
// bypass the sampler.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	return &errorBypassCore{
		Core:    core,
		sampled: zapcore.NewSamplerWithOptions(core, cfg.Tick.Duration(), cfg.Initial, cfg.Thereafter),
	}
}

// errorBypassCore routes Error and above to the embedded core and
// everything else through sampled.
type errorBypassCore struct {
	zapcore.Core
	sampled zapcore.Core
}

func (c *errorBypassCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level >= zapcore.ErrorLevel {
		return c.Core.Check(e, ce)
	}
	return c.sampled.Check(e, ce)
}

func (c *errorBypassCore) With(fields []zapcore.Field) zapcore.Core {
	return &errorBypassCore{
		Core:    c.Core.With(fields),
		sampled: c.sampled.With(fields),
	}
}
