package logging

import "testing"

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestGetLevelDefault(t *testing.T) {
	// levelOnce has already fired in this process; just verify the level
	// is one of the known values.
	level := GetLevel()
	if level < LevelDebug || level > LevelError {
		t.Errorf("GetLevel() returned out-of-range level %d", level)
	}
}
