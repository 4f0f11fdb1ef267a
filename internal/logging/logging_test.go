package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		want      zapcore.Level
	}{
		{name: "quiet", verbosity: 0, want: zapcore.WarnLevel},
		{name: "negative_clamped", verbosity: -3, want: zapcore.WarnLevel},
		{name: "v", verbosity: 1, want: zapcore.InfoLevel},
		{name: "vv", verbosity: 2, want: zapcore.DebugLevel},
		{name: "vvv", verbosity: 3, want: zapcore.DebugLevel},
		{name: "many", verbosity: 9, want: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Level(tt.verbosity); got != tt.want {
				t.Fatalf("Level(%d) = %s, want %s", tt.verbosity, got, tt.want)
			}
		})
	}
}

func TestHTTPTrace(t *testing.T) {
	if HTTPTrace(2) {
		t.Errorf("HTTPTrace(2) = true, want false")
	}
	if !HTTPTrace(3) {
		t.Errorf("HTTPTrace(3) = false, want true")
	}
}

func TestNew_BuildsAtEveryVerbosity(t *testing.T) {
	for v := 0; v <= 4; v++ {
		logger, err := New(v)
		if err != nil {
			t.Fatalf("New(%d) returned error: %v", v, err)
		}
		if !logger.Core().Enabled(Level(v)) {
			t.Fatalf("New(%d) core does not enable its own level %s", v, Level(v))
		}
	}
}
