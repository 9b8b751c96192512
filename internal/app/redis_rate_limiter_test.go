package app

import (
	"context"
	"testing"
	"time"
)

// The limiter must degrade to unlimited whenever it cannot do its job: a
// Redis outage or a disabled configuration must never block money movement.
func TestConsumeRateLimit_DegradesToUnlimited(t *testing.T) {
	tests := []struct {
		name    string
		limiter *RedisRateLimiter
		scope   string
		subject string
		limit   int
		window  time.Duration
	}{
		{
			name:    "nil limiter",
			limiter: nil,
			scope:   "funding",
			subject: "user-1",
			limit:   10,
			window:  time.Minute,
		},
		{
			name:    "no client",
			limiter: NewRedisRateLimiter(nil, "dataflare:rate_limit"),
			scope:   "funding",
			subject: "user-1",
			limit:   10,
			window:  time.Minute,
		},
		{
			name:    "limit disabled",
			limiter: NewRedisRateLimiter(nil, ""),
			scope:   "purchase",
			subject: "user-1",
			limit:   0,
			window:  time.Minute,
		},
		{
			name:    "blank subject",
			limiter: NewRedisRateLimiter(nil, ""),
			scope:   "purchase",
			subject: "  ",
			limit:   10,
			window:  time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, retryAfter, err := tt.limiter.ConsumeRateLimit(context.Background(), tt.scope, tt.subject, tt.limit, tt.window)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != 0 || retryAfter != 0 {
				t.Fatalf("expected an unlimited pass, got count=%d retryAfter=%d", count, retryAfter)
			}
		})
	}
}

func TestNewRedisRateLimiter_PrefixNormalized(t *testing.T) {
	if got := NewRedisRateLimiter(nil, " custom:prefix: ").prefix; got != "custom:prefix" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if got := NewRedisRateLimiter(nil, "").prefix; got != "dataflare:rate_limit" {
		t.Fatalf("expected the default prefix, got %q", got)
	}
}
