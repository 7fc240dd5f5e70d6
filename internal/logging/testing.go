package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, trace included, for assertions.
// Pass Underlying() to components that take a *zap.Logger.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a TestLogger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns every recorded entry.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// AssertLogged fails unless an entry at level has a message containing msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	if t.observed.FilterLevelExact(level).FilterMessageSnippet(msg).Len() == 0 {
		tb.Errorf("no %v entry containing %q; got %d entries: %+v", level, msg, t.observed.Len(), t.observed.All())
	}
}

// AssertField fails unless an entry containing msg has key=expected.
// Integer fields compare as int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	entries := t.observed.FilterMessageSnippet(msg).All()
	for _, entry := range entries {
		if v, ok := entry.ContextMap()[key]; ok && v == expected {
			return
		}
	}
	tb.Errorf("no entry containing %q has %s=%v (%d candidates)", msg, key, expected, len(entries))
}

// AssertNotContains fails if any message or string field contains s.
// Tests use it to check that tokens stay out of the logs.
func (t *TestLogger) AssertNotContains(tb testing.TB, s string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if strings.Contains(entry.Message, s) {
			tb.Errorf("message %q contains %q", entry.Message, s)
		}
		for _, f := range entry.Context {
			if f.Type == zapcore.StringType && strings.Contains(f.String, s) {
				tb.Errorf("field %s of %q contains %q", f.Key, entry.Message, s)
			}
		}
	}
}
