package abuse

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// Action families. Generic tasks, link clicks and contest ad watches share one
// slot on purpose: alternating between them must not bypass the spacing rule.
// Ad watches, spins and withdrawals stay independent so legitimate flows
// don't collide.
const (
	FamilyAd       = "ad"
	FamilySpin     = "spin"
	FamilyTask     = "task"
	FamilyWithdraw = "withdraw"
)

type Verdict struct {
	Allowed    bool
	Banned     bool   // the check itself tripped the hard ban
	RetryAfter int64  // seconds, for 429 responses
	Reason     string
}

// Engine applies the fixed-spacing rule and the behavioral score on top of an
// already-loaded user row. Store failures fail OPEN: the action token check
// still floors the protection and legit users keep working through outages.
type Engine struct {
	Db  *gorm.DB
	Cfg *miniapp.AppConfig

	now func() time.Time
}

func NewEngine(db *gorm.DB, cfg *miniapp.AppConfig) *Engine {
	return &Engine{Db: db, Cfg: cfg, now: time.Now}
}

// Check scores the action and decides whether it may proceed. It mutates the
// abuse fields on user and persists them best-effort.
func (e *Engine) Check(user *miniapp.User, family string, devtools bool, clientHash string) Verdict {
	now := e.now().Unix()
	abuseCfg := e.Cfg.Settings.Abuse
	windows := e.Cfg.Settings.Windows

	if user.CooldownUntil > now {
		return Verdict{Allowed: false, RetryAfter: user.CooldownUntil - now, Reason: "cooldown"}
	}

	// behavioral streak over any scored activity, not per family
	if user.LastSeenAt > 0 && now-user.LastSeenAt < windows.MinActionGapSec {
		user.QuickStreak++
		user.AbuseScore += abuseCfg.QuickPenalty
	} else if user.QuickStreak > 0 {
		user.QuickStreak--
	}
	if devtools {
		user.AbuseScore += abuseCfg.DevtoolsPenalty
	}
	user.LastSeenAt = now

	if user.QuickStreak >= abuseCfg.StreakThreshold {
		user.CooldownUntil = now + windows.SoftCooldownSec
		user.QuickStreak = 0
	}
	if !user.ShadowBanned && user.AbuseScore >= abuseCfg.ShadowScore {
		user.ShadowBanned = true
		e.logIncident(user.Id, miniapp.IncidentShadowBan, fmt.Sprintf("score %d", user.AbuseScore), clientHash)
	}
	banned := false
	if !user.Banned && user.AbuseScore >= abuseCfg.BanScore {
		user.Banned = true
		banned = true
		e.logIncident(user.Id, miniapp.IncidentHardBan, fmt.Sprintf("score %d", user.AbuseScore), clientHash)
	}

	verdict := Verdict{Allowed: true}
	last := FamilyStamp(user, family)
	if last > 0 && now-last < windows.MinActionGapSec {
		retry := windows.MinActionGapSec - (now - last)
		verdict = Verdict{Allowed: false, RetryAfter: retry, Reason: "too fast"}
		e.logIncident(user.Id, miniapp.IncidentRateViolation, family, clientHash)
	}
	if banned {
		verdict = Verdict{Allowed: false, Banned: true, Reason: "banned"}
	}

	if err := e.persist(user); err != nil {
		// store trouble: fail open, the token check still floors protection
		return Verdict{Allowed: true}
	}
	return verdict
}

func (e *Engine) persist(user *miniapp.User) error {
	return e.Db.Model(&miniapp.User{}).Where("id = ?", user.Id).Updates(map[string]interface{}{
		"abuse_score":    user.AbuseScore,
		"quick_streak":   user.QuickStreak,
		"cooldown_until": user.CooldownUntil,
		"last_seen_at":   user.LastSeenAt,
		"shadow_banned":  user.ShadowBanned,
		"banned":         user.Banned,
	}).Error
}

func (e *Engine) logIncident(userId int64, kind string, detail string, clientHash string) {
	_ = e.Db.Create(&miniapp.Incident{
		UserId:     userId,
		Kind:       kind,
		Detail:     detail,
		ClientHash: clientHash,
	}).Error
}

// FamilyStamp reads the last-success stamp for a family.
func FamilyStamp(user *miniapp.User, family string) int64 {
	switch family {
	case FamilyAd:
		return user.LastAdAt
	case FamilySpin:
		return user.LastSpinAt
	case FamilyTask:
		return user.LastTaskAt
	case FamilyWithdraw:
		return user.LastWithdrawAt
	}
	return 0
}

// SetFamilyStamp records a successful action; the handler persists it with
// the rest of the reward write.
func SetFamilyStamp(user *miniapp.User, family string, at int64) {
	switch family {
	case FamilyAd:
		user.LastAdAt = at
	case FamilySpin:
		user.LastSpinAt = at
	case FamilyTask:
		user.LastTaskAt = at
	case FamilyWithdraw:
		user.LastWithdrawAt = at
	}
}
