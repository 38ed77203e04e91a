package api

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makremffff/adwatch-backend/internal/abuse"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Withdraw debits the balance into a pending payout row. The payout itself is
// settled by staff out of band; this endpoint only takes the money off the
// account so it can't be spent twice.
func Withdraw(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, true)
	if !authed {
		return
	}
	user, err := resolveUser(app, userId, identity)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load account")
		return
	}
	if user.Banned {
		fail(c, http.StatusForbidden, "account suspended")
		return
	}
	if !validateToken(c, app, user, "withdraw", p.ActionId) {
		return
	}
	if !checkAbuse(c, app, user, abuse.FamilyWithdraw, p.Devtools) {
		return
	}

	rail, destination, valid := payoutDestination(p)
	if !valid {
		fail(c, http.StatusBadRequest, "provide either a valid email or a wallet id")
		return
	}

	minAmount := miniapp.CurrentAppConfig.Settings.Limits.WithdrawMin
	if user.WithdrawMin > minAmount {
		// per-user override only ever raises the floor
		minAmount = user.WithdrawMin
	}
	amount := miniapp.RoundFloat(p.Amount, 4)
	if amount < minAmount {
		fail(c, http.StatusBadRequest, fmt.Sprintf("minimum withdrawal is %v", minAmount))
		return
	}
	if amount > user.Balance {
		fail(c, http.StatusBadRequest, "insufficient balance")
		return
	}

	payout := miniapp.Payout{
		UserId:      user.Id,
		Amount:      amount,
		Rail:        rail,
		Destination: destination,
		Status:      miniapp.PayoutStatusPending,
	}
	now := time.Now().Unix()
	// debit, payout row and token burn land in one transaction: a failure at
	// any point leaves the balance untouched
	err = commitReward(app, user, "withdraw", p.ActionId, func(u *miniapp.User) {
		u.Balance = miniapp.RoundFloat(u.Balance-amount, 4)
		abuse.SetFamilyStamp(u, abuse.FamilyWithdraw, now)
	}, func(tx *gorm.DB) error {
		return tx.Create(&payout).Error
	})
	if err != nil {
		failReward(c, app, user, "withdraw", err)
		return
	}
	if !user.ShadowBanned {
		cpUrl := os.Getenv("CP_URL")
		msg := fmt.Sprintf(
			`New Withdrawal [User: %d](%s/users/%d)
Amount: %s
Rail: %s`,
			user.Id,
			cpUrl,
			user.Id,
			miniapp.EscapeMarkdownV2(fmt.Sprintf("%v", amount)),
			miniapp.EscapeMarkdownV2(rail),
		)
		notify(msg, "finance")
	}
	ok(c, gin.H{
		"payout": gin.H{
			"amount": payout.Amount,
			"rail":   payout.Rail,
			"status": payout.Status,
		},
		"user": user.Data(),
	})
}

// payoutDestination enforces the exactly-one-rail rule and normalizes the
// destination string.
func payoutDestination(p *requestParams) (rail string, destination string, valid bool) {
	if p.Email != "" && p.Wallet != "" {
		return "", "", false
	}
	if p.Email != "" {
		if !emailRe.MatchString(p.Email) || len(p.Email) > 254 {
			return "", "", false
		}
		return miniapp.PayoutRailEmail, p.Email, true
	}
	if p.Wallet != "" {
		if len(p.Wallet) < 5 || len(p.Wallet) > 100 {
			return "", "", false
		}
		return miniapp.PayoutRailWallet, p.Wallet, true
	}
	return "", "", false
}
