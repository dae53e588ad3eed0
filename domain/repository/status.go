package repository

// Status represents the lifecycle state of a tracked repository.
type Status string

// Status values.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
	StatusAnalyzing    Status = "analyzing"
	StatusReady        Status = "ready"
	StatusError        Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true for a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDisconnected, StatusConnected, StatusAnalyzing, StatusReady, StatusError:
		return true
	}
	return false
}

// CanTransitionTo reports whether the transition to next is allowed.
// Lifecycle: Disconnected → Connected → Analyzing → Ready | Error.
// Analyzing may be re-entered from Connected, Ready, or Error for a
// re-index. A transition to the same status is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusDisconnected:
		return next == StatusConnected
	case StatusConnected:
		return next == StatusAnalyzing || next == StatusError
	case StatusAnalyzing:
		return next == StatusReady || next == StatusError
	case StatusReady:
		return next == StatusAnalyzing
	case StatusError:
		return next == StatusAnalyzing
	}
	return false
}

// IsIndexable returns true if the repository can start an analysis run.
func (s Status) IsIndexable() bool {
	return s == StatusConnected || s == StatusReady || s == StatusError
}
