package chat

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("429 Too Many Requests"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"server error", errors.New("received 503 from upstream"), true},
		{"overloaded", errors.New("model is currently Overloaded"), true},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout)"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"auth failure", errors.New("401 invalid api key"), false},
		{"bad request", errors.New("400 invalid model"), false},
		{"wrapped transient", fmt.Errorf("complete: %w", errors.New("service unavailable")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
