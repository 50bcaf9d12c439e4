package f13

// Status classifies what happened to a single filing.
type Status int

const (
	StatusCommitted Status = iota + 1
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one filing. Err is set only for
// StatusFailed; Reason explains skips.
type Outcome struct {
	URL      string
	Status   Status
	Reason   string
	Err      error
	Holdings int
}
