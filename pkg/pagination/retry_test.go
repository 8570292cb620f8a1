package pagination

import (
	"testing"
	"time"
)

func TestRetryConfigNormalized(t *testing.T) {
	got := RetryConfig{}.normalized()
	want := DefaultRetryConfig()
	if got != want {
		t.Errorf("normalized() = %+v, want defaults %+v", got, want)
	}

	custom := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 3.0,
	}
	if got := custom.normalized(); got != custom {
		t.Errorf("normalized() = %+v, want unchanged %+v", got, custom)
	}
}

func TestBackoffForGrowsAndCaps(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		retry int
		base  time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 4 * time.Second}, // capped
		{9, 4 * time.Second},
	}

	for _, tt := range tests {
		got := config.backoffFor(tt.retry)
		lower := time.Duration(float64(tt.base) * 0.8)
		upper := time.Duration(float64(tt.base) * 1.2)
		if got < lower || got > upper {
			t.Errorf("backoffFor(%d) = %v, want within [%v, %v]", tt.retry, got, lower, upper)
		}
	}
}
