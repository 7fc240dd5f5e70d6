package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. LOG_LEVEL=trace enables it.
const TraceLevel = zapcore.Level(-2)

// levelNames holds zap's names plus the uvicorn names that existing
// deployments set in LOG_LEVEL.
var levelNames = map[string]zapcore.Level{
	"trace":   TraceLevel,
	"debug":   zapcore.DebugLevel,
	"info":    zapcore.InfoLevel,
	"warn":    zapcore.WarnLevel,
	"warning": zapcore.WarnLevel,
	"error":   zapcore.ErrorLevel,
	// Nearest zap level above error that does not exit or panic.
	"critical": zapcore.DPanicLevel,
}

// LevelFromString parses a level name, case-insensitively.
func LevelFromString(level string) (zapcore.Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown level %q (trace, debug, info, warning, error, critical)", level)
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}
