package backoff

import (
	"testing"
	"time"
)

func TestExponentialDefaults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{10, 5 * time.Second}, // capped at max
	}

	for _, tt := range tests {
		if got := Exponential(tt.attempt, nil); got != tt.want {
			t.Errorf("Exponential(%d, nil) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialCustomConfig(t *testing.T) {
	t.Parallel()
	cfg := &Config{Initial: time.Second, Max: 3 * time.Second}

	if got := Exponential(1, cfg); got != time.Second {
		t.Errorf("attempt 1 = %v, want 1s", got)
	}
	if got := Exponential(2, cfg); got != 2*time.Second {
		t.Errorf("attempt 2 = %v, want 2s", got)
	}
	if got := Exponential(3, cfg); got != 3*time.Second {
		t.Errorf("attempt 3 = %v, want capped 3s", got)
	}
}
