package types

// Availability is the result of a capability check: either available, or
// unavailable with a reason the orchestrator can report.
type Availability struct {
	OK     bool   `json:"available"`
	Reason string `json:"reason,omitempty"`
}

// Available reports a usable capability.
func Available() Availability {
	return Availability{OK: true}
}

// Unavailable reports a disabled or unreachable capability.
func Unavailable(reason string) Availability {
	return Availability{Reason: reason}
}

func (a Availability) String() string {
	if a.OK {
		return "available"
	}
	return "unavailable: " + a.Reason
}
