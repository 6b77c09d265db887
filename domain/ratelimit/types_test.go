package ratelimit

import (
	"testing"
	"time"
)

func TestConfig_Valid(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   bool
	}{
		{"default", DefaultAuthConfig(), true},
		{"zero requests", Config{RequestsPerWindow: 0, WindowSize: time.Minute}, false},
		{"zero window", Config{RequestsPerWindow: 5}, false},
		{"negative", Config{RequestsPerWindow: -1, WindowSize: time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
