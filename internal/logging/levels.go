package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below zap's Debug (-1). It carries per-point and
// per-batch detail that would swamp debug output, and is expected to be
// filtered everywhere but a debugging session.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name, case-insensitively, accepting
// "trace" on top of the names zapcore understands. On error the returned
// level is Info.
func LevelFromString(level string) (zapcore.Level, error) {
	level = strings.ToLower(level)
	if level == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}
