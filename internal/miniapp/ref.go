package miniapp

import "time"

// Ref accumulates commissions earned by a referrer from one invited user.
type Ref struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserId     int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`   // referrer
	AuthorId   int64     `json:"author_id" gorm:"primaryKey;autoIncrement:false"` // invited earner
	AuthorName string    `json:"author_name"`
	Amount     float64   `json:"amount"` // commission total from this referral
}

type RefData struct {
	TotalCounter uint    `json:"total_counter"`
	AmountTotal  float64 `json:"amount_total"`
}

// GetRefStats aggregates a user's referral earnings.
func GetRefStats(app *App, user User) (refStats RefData) {
	var refRelations []Ref
	res := app.Db.Where("user_id = ?", user.Id).Find(&refRelations)
	if res.RowsAffected > 0 {
		for _, relation := range refRelations {
			refStats.TotalCounter++
			refStats.AmountTotal += relation.Amount
		}
	}
	return refStats
}
