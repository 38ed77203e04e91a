package miniapp

import "time"

const (
	PayoutRailEmail  = "email"  // email-addressed payout rail
	PayoutRailWallet = "wallet" // opaque wallet id rail

	PayoutStatusPending  = 0
	PayoutStatusSettled  = 1
	PayoutStatusRejected = 9
)

// Payout is a debit already taken from the user's balance, waiting for
// external settlement. This service never executes the transfer itself.
type Payout struct {
	Id          uint      `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	UserId      int64     `json:"user_id" gorm:"index"`
	Amount      float64   `json:"amount"`
	Rail        string    `json:"rail"`
	Destination string    `json:"destination"`
	Status      uint      `json:"status" gorm:"index"`
}
