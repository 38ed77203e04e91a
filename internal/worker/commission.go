package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

const TypeCommission = "commission:credit"

// CommissionPayload carries the earner and the base reward; the commission
// percentage is resolved at processing time from the live config.
type CommissionPayload struct {
	EarnerId int64   `json:"earner_id"`
	Reward   float64 `json:"reward"`
}

func NewCommissionTask(earnerId int64, reward float64) (*asynq.Task, error) {
	payload, err := json.Marshal(CommissionPayload{EarnerId: earnerId, Reward: reward})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCommission, payload), nil
}

// HandleCommission credits the referrer with their share of a referral's
// reward and keeps the per-referral accrual row up to date.
func HandleCommission(db *gorm.DB) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p CommissionPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("commission payload: %v: %w", err, asynq.SkipRetry)
		}
		var earner miniapp.User
		res := db.Where("id = ?", p.EarnerId).First(&earner)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("earner %d not found: %w", p.EarnerId, asynq.SkipRetry)
			}
			return res.Error
		}
		if earner.Upline == 0 {
			return nil
		}
		amount := miniapp.RoundFloat(p.Reward*miniapp.CurrentAppConfig.Settings.Ref.Commission, 4)
		if amount <= 0 {
			return nil
		}

		var referrer miniapp.User
		res = db.Where("id = ?", earner.Upline).First(&referrer)
		if res.RowsAffected != 1 {
			return nil
		}
		relation := miniapp.Ref{
			UserId:     referrer.Id,
			AuthorId:   earner.Id,
			AuthorName: earner.Name,
			Amount:     amount,
		}
		// accruals from concurrent rewards fold into one row per referral pair
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "author_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":      gorm.Expr("amount + ?", amount),
				"author_name": earner.Name,
				"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&relation).Error
		if err != nil {
			return err
		}
		return db.Model(&miniapp.User{}).Where("id = ?", referrer.Id).
			Update("balance", gorm.Expr("balance + ?", amount)).Error
	}
}
