package api

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/abuse"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// PreSpin issues the spin token and the sector layout so the client can
// render the wheel it will later have to animate against our draw.
func PreSpin(c *gin.Context, app *miniapp.App, p *requestParams) {
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
	cfg := miniapp.CurrentAppConfig.Settings
	if user.SpinsUsed >= cfg.Caps.SpinsPerDay {
		fail(c, http.StatusForbidden, "daily spin limit reached")
		return
	}
	sessionId := ""
	if v, hasSession := c.Get("session_id"); hasSession {
		sessionId = v.(string)
	}
	token, err := tokenManager(app).Generate(user.Id, "spinResult", sessionId)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	sectors := make([]float64, len(cfg.Spin))
	for i, sector := range cfg.Spin {
		sectors[i] = sector.Prize
	}
	ok(c, gin.H{
		"action_id": token.Token,
		"sectors":   sectors,
		"ttl":       cfg.Windows.TokenTtlSec,
	})
}

// drawSector picks the winning sector by weight. The server draw is the
// authoritative outcome; the client only animates it.
func drawSector(sectors []miniapp.SpinSector) (int, float64) {
	total := uint(0)
	for _, sector := range sectors {
		total += sector.Weight
	}
	if total == 0 {
		return 0, 0
	}
	roll := uint(rand.Intn(int(total)))
	for i, sector := range sectors {
		if roll < sector.Weight {
			return i, sector.Prize
		}
		roll -= sector.Weight
	}
	return len(sectors) - 1, sectors[len(sectors)-1].Prize
}

// SpinResult draws the prize server-side and credits it. The response carries
// both the prize and the sector index for a consistent animation.
func SpinResult(c *gin.Context, app *miniapp.App, p *requestParams) {
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
	if !validateToken(c, app, user, "spinResult", p.ActionId) {
		return
	}
	if !checkAbuse(c, app, user, abuse.FamilySpin, p.Devtools) {
		return
	}
	cfg := miniapp.CurrentAppConfig.Settings
	if user.SpinsUsed >= cfg.Caps.SpinsPerDay {
		fail(c, http.StatusForbidden, "daily spin limit reached")
		return
	}
	sector, prize := drawSector(cfg.Spin)
	now := time.Now().Unix()
	err = commitReward(app, user, "spinResult", p.ActionId, func(u *miniapp.User) {
		u.Balance = miniapp.RoundFloat(u.Balance+prize, 4)
		u.SpinsUsed++
		if u.SpinsUsed >= cfg.Caps.SpinsPerDay {
			u.SpinsLimitAt = now
		}
		abuse.SetFamilyStamp(u, abuse.FamilySpin, now)
	}, nil)
	if err != nil {
		failReward(c, app, user, "spinResult", err)
		return
	}
	enqueueCommission(app, user, prize)
	ok(c, gin.H{
		"prize":  prize,
		"sector": sector,
		"user":   user.Data(),
	})
}
