package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/makremffff/adwatch-backend/internal/abuse"
	"github.com/makremffff/adwatch-backend/internal/actiontoken"
	"github.com/makremffff/adwatch-backend/internal/initdata"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
	"github.com/makremffff/adwatch-backend/internal/worker"
)

// Notifier, when set, takes the ops Telegram messages off the request path.
var Notifier *worker.Pool

func clientHash(c *gin.Context) string {
	return miniapp.ClientHash(c.ClientIP(), c.GetHeader("User-Agent"))
}

// authenticate resolves the acting user id. Identity-sensitive endpoints pass
// required=true; everything else only requires the signed payload when the
// StrictIdentity policy is on. A failed check is "unauthenticated", logged as
// an audit event, and never a ban by itself.
func authenticate(c *gin.Context, app *miniapp.App, p *requestParams, required bool) (int64, *initdata.Identity, bool) {
	required = required || miniapp.CurrentAppConfig.Settings.Policy.StrictIdentity
	if p.InitData == "" && !required {
		if p.UserId <= 0 {
			fail(c, http.StatusBadRequest, "user_id is required")
			return 0, nil, false
		}
		return p.UserId, nil, true
	}
	identity, err := initdata.Verify(p.InitData, app.BotToken, time.Now())
	if err != nil {
		kind := miniapp.IncidentBadIdentity
		if errors.Is(err, initdata.ErrStale) {
			kind = miniapp.IncidentStaleIdentity
		}
		app.LogIncident(p.UserId, kind, err.Error(), clientHash(c))
		fail(c, http.StatusUnauthorized, "identity check failed")
		return 0, nil, false
	}
	return identity.UserId, identity, true
}

// resolveUser upserts the account: first contact creates it with zero balance
// and counters.
func resolveUser(app *miniapp.App, userId int64, identity *initdata.Identity) (*miniapp.User, error) {
	user := miniapp.User{Id: userId}
	if err := app.Db.FirstOrCreate(&user, miniapp.User{Id: userId}).Error; err != nil {
		return nil, err
	}
	if identity != nil {
		changed := false
		if identity.Name != "" && identity.Name != user.Name {
			user.Name = identity.Name
			changed = true
		}
		if identity.Username != "" && identity.Username != user.Username {
			user.Username = identity.Username
			changed = true
		}
		if identity.PhotoUrl != "" && identity.PhotoUrl != user.PhotoUrl {
			user.PhotoUrl = identity.PhotoUrl
			changed = true
		}
		if changed {
			_ = app.Db.Save(&user).Error
		}
	}
	return &user, nil
}

// maybeResetDaily applies the rolling 6h reset to every counter that actually
// hit its cap. Counter and stamp clear together in one update, and only the
// capped ones are touched. Called at the start of any handler that reads the
// counters.
func maybeResetDaily(app *miniapp.App, user *miniapp.User) {
	cfg := miniapp.CurrentAppConfig.Settings
	now := time.Now().Unix()
	updates := map[string]interface{}{}

	if user.AdsLimitAt > 0 && now-user.AdsLimitAt > cfg.Windows.CapResetSec && user.AdsWatched >= cfg.Caps.AdsPerDay {
		user.AdsWatched = 0
		user.AdsLimitAt = 0
		updates["ads_watched"] = uint(0)
		updates["ads_limit_at"] = int64(0)
	}
	if user.SpinsLimitAt > 0 && now-user.SpinsLimitAt > cfg.Windows.CapResetSec && user.SpinsUsed >= cfg.Caps.SpinsPerDay {
		user.SpinsUsed = 0
		user.SpinsLimitAt = 0
		updates["spins_used"] = uint(0)
		updates["spins_limit_at"] = int64(0)
	}
	if user.TaskClicksAt > 0 && now-user.TaskClicksAt > cfg.Windows.CapResetSec && user.TaskClicks >= cfg.Caps.TaskClicksPerDay {
		user.TaskClicks = 0
		user.TaskClicksAt = 0
		updates["task_clicks"] = uint(0)
		updates["task_clicks_at"] = int64(0)
	}
	if user.ContestLimitAt > 0 && now-user.ContestLimitAt > cfg.Windows.CapResetSec && user.ContestAds >= cfg.Caps.ContestAdsPerDay {
		user.ContestAds = 0
		user.ContestLimitAt = 0
		updates["contest_ads"] = uint(0)
		updates["contest_limit_at"] = int64(0)
	}
	if len(updates) > 0 {
		_ = app.Db.Model(&miniapp.User{}).Where("id = ?", user.Id).Updates(updates).Error
	}
}

func tokenManager(app *miniapp.App) *actiontoken.Manager {
	cfg := miniapp.CurrentAppConfig.Settings
	return actiontoken.NewManager(
		app.Db,
		time.Duration(cfg.Windows.TokenTtlSec)*time.Second,
		cfg.Policy.ConsumeOnValidate,
	)
}

func abuseEngine(app *miniapp.App) *abuse.Engine {
	return abuse.NewEngine(app.Db, miniapp.CurrentAppConfig)
}

// validateToken maps the token lifecycle taxonomy onto status codes: missing
// 400, expired 408 (benign), reuse 409 (logged as a replay signal), store
// trouble 500 (never a security signal).
func validateToken(c *gin.Context, app *miniapp.App, user *miniapp.User, action string, token string) bool {
	m := tokenManager(app)
	err := m.Validate(user.Id, action, token)
	if err == nil {
		if sessionId, hasSession := c.Get("session_id"); hasSession {
			var row actiontoken.Token
			if app.Db.Where("token = ?", token).First(&row).Error == nil &&
				row.SessionId != "" && row.SessionId != sessionId.(string) {
				app.LogIncident(user.Id, miniapp.IncidentTokenReuse, "session mismatch for "+action, clientHash(c))
				fail(c, http.StatusConflict, "invalid or previously used token")
				return false
			}
		}
		return true
	}
	switch {
	case errors.Is(err, actiontoken.ErrMissing):
		fail(c, http.StatusBadRequest, "action token missing")
	case errors.Is(err, actiontoken.ErrExpired):
		fail(c, http.StatusRequestTimeout, "action token expired")
	case errors.Is(err, actiontoken.ErrNotFound):
		app.LogIncident(user.Id, miniapp.IncidentTokenReuse, action, clientHash(c))
		fail(c, http.StatusConflict, "invalid or previously used token")
	default:
		fail(c, http.StatusInternalServerError, "token check failed")
	}
	return false
}

// commitReward applies the mutated user row and burns the action token in one
// transaction. The conditional delete's affected-row count decides inside the
// same commit as the balance write, so of two racing submissions of one token
// exactly one can credit; the loser rolls back whole. extra carries any other
// row that must land with the reward (payout, task completion) or not at all.
// Shadow-banned accounts burn the token but persist nothing else.
func commitReward(app *miniapp.App, user *miniapp.User, action string, token string, mutate func(u *miniapp.User), extra func(tx *gorm.DB) error) error {
	mutate(user)
	m := tokenManager(app)
	return app.Db.Transaction(func(tx *gorm.DB) error {
		if !m.ConsumeOnValidate {
			if err := actiontoken.NewManager(tx, m.Ttl, false).Consume(user.Id, action, token); err != nil {
				return err
			}
		}
		if user.ShadowBanned {
			return nil
		}
		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}
		return tx.Save(user).Error
	})
}

// failReward writes the standard mapping for a failed commit: a token that
// vanished between validation and commit lost a replay race.
func failReward(c *gin.Context, app *miniapp.App, user *miniapp.User, action string, err error) {
	if errors.Is(err, actiontoken.ErrNotFound) || errors.Is(err, actiontoken.ErrMissing) {
		app.LogIncident(user.Id, miniapp.IncidentTokenReuse, action, clientHash(c))
		fail(c, http.StatusConflict, "invalid or previously used token")
		return
	}
	fail(c, http.StatusInternalServerError, "failed to apply reward")
}

// checkAbuse runs the rate/abuse engine and writes the rejection response.
func checkAbuse(c *gin.Context, app *miniapp.App, user *miniapp.User, family string, devtools bool) bool {
	v := abuseEngine(app).Check(user, family, devtools, clientHash(c))
	if v.Allowed {
		return true
	}
	if v.Banned {
		fail(c, http.StatusForbidden, "account suspended")
		return false
	}
	c.Header("Retry-After", fmt.Sprintf("%d", v.RetryAfter))
	fail(c, http.StatusTooManyRequests, "too many requests")
	return false
}

// enqueueCommission dispatches the referral commission as a background task.
// Best effort: failures are logged and swallowed, the primary response never
// waits on it.
func enqueueCommission(app *miniapp.App, user *miniapp.User, reward float64) {
	if app.Aqc == nil || user.Upline == 0 || user.ShadowBanned || reward <= 0 {
		return
	}
	task, err := worker.NewCommissionTask(user.Id, reward)
	if err != nil {
		fmt.Println("commission task:", err)
		return
	}
	if _, err := app.Aqc.Enqueue(task, asynq.Queue("commission")); err != nil {
		fmt.Println("commission enqueue:", err)
	}
}

func notify(msg string, chat string) {
	if Notifier == nil {
		go func() { _ = miniapp.SendTelegramMessage(msg, chat) }()
		return
	}
	Notifier.Exec(worker.NotifyTask{Message: msg, Chat: chat})
}
