package event

import "time"

const AccountLockedDestination string = "otp_account_locked"
const AccountLockedConsumerNotification string = "otp_account_locked_notification"

type AccountLockedMessage struct {
	AccountID      int64     `json:"account_id,string"`
	Email          string    `json:"email"`
	FailedAttempts int       `json:"failed_attempts"`
	LockedUntil    time.Time `json:"locked_until"`
	Origin         string    `json:"origin,omitempty"`
}
