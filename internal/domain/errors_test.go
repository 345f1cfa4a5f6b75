package domain

import "testing"

func TestTransportError_Retryable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{name: "network error without response", status: 0, want: true},
		{name: "validation rejection", status: 400, want: false},
		{name: "request timeout", status: 408, want: true},
		{name: "unprocessable entity", status: 422, want: false},
		{name: "throttled", status: 429, want: true},
		{name: "server error", status: 500, want: true},
		{name: "unavailable", status: 503, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &TransportError{Op: "post", StatusCode: tt.status}
			if got := err.Retryable(); got != tt.want {
				t.Errorf("status %d: got %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
