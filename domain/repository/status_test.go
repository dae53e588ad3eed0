package repository

import "testing"

func TestStatus_IsValid(t *testing.T) {
	valid := []Status{StatusDisconnected, StatusConnected, StatusAnalyzing, StatusReady, StatusError}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("IsValid() = false for %q", s)
		}
	}
	if Status("bogus").IsValid() {
		t.Error("IsValid() = true for unknown status")
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDisconnected, StatusConnected, true},
		{StatusDisconnected, StatusAnalyzing, false},
		{StatusDisconnected, StatusReady, false},
		{StatusConnected, StatusAnalyzing, true},
		{StatusConnected, StatusError, true},
		{StatusConnected, StatusReady, false},
		{StatusConnected, StatusDisconnected, false},
		{StatusAnalyzing, StatusReady, true},
		{StatusAnalyzing, StatusError, true},
		{StatusAnalyzing, StatusConnected, false},
		{StatusReady, StatusAnalyzing, true},
		{StatusReady, StatusConnected, false},
		{StatusError, StatusAnalyzing, true},
		{StatusError, StatusReady, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatus_SelfTransitionAllowed(t *testing.T) {
	all := []Status{StatusDisconnected, StatusConnected, StatusAnalyzing, StatusReady, StatusError}
	for _, s := range all {
		if !s.CanTransitionTo(s) {
			t.Errorf("%s -> %s should be allowed", s, s)
		}
	}
}

func TestStatus_IsIndexable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusDisconnected, false},
		{StatusConnected, true},
		{StatusAnalyzing, false},
		{StatusReady, true},
		{StatusError, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsIndexable(); got != tt.want {
			t.Errorf("IsIndexable(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
