package entity

// Result is the caller-facing outcome of an issue or verify attempt.
type Result int

const (
	ResultUnknown Result = iota
	ResultSuccess
	ResultInvalidCode
	ResultExpired
	ResultAlreadyUsed
	ResultLockedOut
	ResultDeliveryFailed
	// ResultAccepted is the issue outcome that does not reveal whether the
	// email belongs to an account.
	ResultAccepted
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInvalidCode:
		return "invalid_code"
	case ResultExpired:
		return "expired"
	case ResultAlreadyUsed:
		return "already_used"
	case ResultLockedOut:
		return "locked_out"
	case ResultDeliveryFailed:
		return "delivery_failed"
	case ResultAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// CountsAsFailure reports whether r moves the lockout counter.
func (r Result) CountsAsFailure() bool {
	return r == ResultInvalidCode
}
