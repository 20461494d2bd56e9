package errors

import "testing"

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code     string
		expected bool
	}{
		{CodeTransport, true},
		{CodeConnection, true},
		{CodeConfiguration, false},
		{CodeInput, false},
		{CodeUnimplemented, false},
		{CodeInternal, false},
		{CodeOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := IsRetryable(tt.code); got != tt.expected {
				t.Errorf("Code %s: expected retryable=%v, got %v", tt.code, tt.expected, got)
			}
		})
	}
}
