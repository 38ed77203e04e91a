package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/abuse"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

type contestEntry struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PhotoUrl   string `json:"photo_url"`
	ContestAds uint   `json:"contest_ads"`
}

// GetContestData returns the contest leaderboard. Plain read.
func GetContestData(c *gin.Context, app *miniapp.App, p *requestParams) {
	var leaders []miniapp.User
	app.Db.Where("contest_ads > 0 AND banned = ? AND shadow_banned = ?", false, false).
		Order("contest_ads DESC").
		Limit(50).
		Find(&leaders)
	board := make([]contestEntry, 0, len(leaders))
	for _, leader := range leaders {
		board = append(board, contestEntry{
			ID:         leader.Id,
			Name:       leader.Name,
			PhotoUrl:   leader.PhotoUrl,
			ContestAds: leader.ContestAds,
		})
	}
	ok(c, gin.H{"leaderboard": board})
}

// GetContestRank returns the caller's position among contest participants.
func GetContestRank(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, false)
	if !authed {
		return
	}
	user, err := resolveUser(app, userId, identity)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load account")
		return
	}
	var ahead int64
	app.Db.Model(&miniapp.User{}).
		Where("contest_ads > ? AND banned = ? AND shadow_banned = ?", user.ContestAds, false, false).
		Count(&ahead)
	ok(c, gin.H{
		"rank":        ahead + 1,
		"contest_ads": user.ContestAds,
	})
}

// ContestWatchAd mirrors WatchAd against the contest counter and constant.
// It shares the task action family so alternating between task clicks and
// contest ads can't dodge the spacing rule.
func ContestWatchAd(c *gin.Context, app *miniapp.App, p *requestParams) {
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
	if !validateToken(c, app, user, "contestWatchAd", p.ActionId) {
		return
	}
	if !checkAbuse(c, app, user, abuse.FamilyTask, p.Devtools) {
		return
	}
	cfg := miniapp.CurrentAppConfig.Settings
	if user.ContestAds >= cfg.Caps.ContestAdsPerDay {
		fail(c, http.StatusForbidden, "daily contest limit reached")
		return
	}
	reward := cfg.Rewards.ContestAd
	now := time.Now().Unix()
	err = commitReward(app, user, "contestWatchAd", p.ActionId, func(u *miniapp.User) {
		u.Balance = miniapp.RoundFloat(u.Balance+reward, 4)
		u.ContestAds++
		if u.ContestAds >= cfg.Caps.ContestAdsPerDay {
			u.ContestLimitAt = now
		}
		abuse.SetFamilyStamp(u, abuse.FamilyTask, now)
	}, nil)
	if err != nil {
		failReward(c, app, user, "contestWatchAd", err)
		return
	}
	enqueueCommission(app, user, reward)
	ok(c, gin.H{
		"reward": reward,
		"user":   user.Data(),
	})
}
