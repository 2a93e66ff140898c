package event

import "time"

const AccountVerifiedDestination string = "otp_account_verified"
const AccountVerifiedConsumerNotification string = "otp_account_verified_notification"

type AccountVerifiedMessage struct {
	AccountID  int64     `json:"account_id,string"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
}
