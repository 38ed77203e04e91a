package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/abuse"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// WatchAd credits the fixed per-watch reward. The flow is the handler
// template every ledger operation follows: resolve, ban gate, token check,
// rate check, business rule against refetched state, server-computed write.
func WatchAd(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, false)
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
	maybeResetDaily(app, user)
	if !validateToken(c, app, user, "watchAd", p.ActionId) {
		return
	}
	if !checkAbuse(c, app, user, abuse.FamilyAd, p.Devtools) {
		return
	}
	cfg := miniapp.CurrentAppConfig.Settings
	if user.AdsWatched >= cfg.Caps.AdsPerDay {
		fail(c, http.StatusForbidden, "daily ad limit reached")
		return
	}
	reward := cfg.Rewards.AdWatch
	now := time.Now().Unix()
	err = commitReward(app, user, "watchAd", p.ActionId, func(u *miniapp.User) {
		u.Balance = miniapp.RoundFloat(u.Balance+reward, 4)
		u.AdsWatched++
		if u.AdsWatched >= cfg.Caps.AdsPerDay {
			u.AdsLimitAt = now
		}
		abuse.SetFamilyStamp(u, abuse.FamilyAd, now)
	}, nil)
	if err != nil {
		failReward(c, app, user, "watchAd", err)
		return
	}
	enqueueCommission(app, user, reward)
	ok(c, gin.H{
		"reward": reward,
		"user":   user.Data(),
	})
}
