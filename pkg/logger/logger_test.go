package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		env     string
		debugOn bool
	}{
		{env: "local", debugOn: true},
		{env: "prod", debugOn: false},
		{env: "", debugOn: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			log := SetupLogger(tt.env)
			if got := log.Enabled(context.Background(), slog.LevelDebug); got != tt.debugOn {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugOn)
			}
		})
	}
}
