package logging

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger wraps Logger with an observer core so tests can assert on
// what was logged. Everything down to TraceLevel is captured.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a logger for testing with full observation.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{
			zap:    zap.New(core),
			config: NewDefaultConfig(),
		},
		observed: observed,
	}
}

// All returns all logged entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset clears all logged entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged fails tb unless an entry at level containing msgContains
// was logged.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
}

// AssertNotLogged fails tb if an entry at level containing msgContains
// was logged.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			tb.Errorf("unexpected log at %v containing %q", level, msgContains)
		}
	}
}

// AssertField fails tb unless an entry with message msg carries a field
// key with the expected value.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		for _, field := range entry.Context {
			if field.Key != key {
				continue
			}
			if field.Type == zapcore.StringType && field.String == expected {
				return
			}
			if reflect.DeepEqual(field.Interface, expected) {
				return
			}
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

var (
	secretKeyHints = []string{"password", "secret", "token", "api_key", "authorization", "bearer", "credential", "private_key"}
	secretPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+\S+`),
		regexp.MustCompile(`(?i)api[_-]?key[=:]\s*\S+`),
	}
)

// AssertNoSecrets fails tb if any captured entry carries an unredacted
// credential, either in the message or in a string field.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		for _, re := range secretPatterns {
			if re.MatchString(entry.Message) {
				tb.Errorf("sensitive pattern in message: %q", entry.Message)
			}
		}
		for _, field := range entry.Context {
			checkFieldForSecrets(tb, field)
		}
	}
}

func checkFieldForSecrets(tb testing.TB, field zapcore.Field) {
	tb.Helper()
	if field.Type != zapcore.StringType {
		return
	}
	keyLower := strings.ToLower(field.Key)
	for _, hint := range secretKeyHints {
		if strings.Contains(keyLower, hint) &&
			!strings.Contains(field.String, "[REDACTED") && field.String != "" {
			tb.Errorf("sensitive field %q not redacted: %q", field.Key, field.String)
		}
	}
	for _, re := range secretPatterns {
		if re.MatchString(field.String) {
			tb.Errorf("sensitive pattern in field %q: %q", field.Key, field.String)
		}
	}
}

// AssertTraceCorrelation fails tb unless the entry with message msg
// carries a trace_id field.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		for _, field := range entry.Context {
			if field.Key == "trace_id" {
				return
			}
		}
	}
	tb.Errorf("message %q missing trace_id", msg)
}
