package miniapp

import (
	"time"
)

// User keys on the Telegram user id. Accounts are never hard-deleted; banning
// is a flag flip so the audit trail stays attached.
type User struct {
	Id        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `json:"name"`
	Username  string    `gorm:"index" json:"username"`
	PhotoUrl  string    `json:"photo_url"`

	Balance float64 `json:"balance"` // may hold fractional units from commissions

	// Daily counters with their "cap was hit at" stamps, unix seconds.
	// The reset window rolls from the stamp, not from midnight.
	AdsWatched       uint  `json:"ads_watched"`
	AdsLimitAt       int64 `json:"ads_limit_at"`
	SpinsUsed        uint  `json:"spins_used"`
	SpinsLimitAt     int64 `json:"spins_limit_at"`
	TaskClicks       uint  `json:"task_clicks"`
	TaskClicksAt     int64 `json:"task_clicks_at"`
	ContestAds       uint  `json:"contest_ads"`
	ContestLimitAt   int64 `json:"contest_limit_at"`

	// Last successful action per family. Separate fields so one family's
	// cooldown never locks out another.
	LastAdAt       int64 `json:"last_ad_at"`
	LastSpinAt     int64 `json:"last_spin_at"`
	LastTaskAt     int64 `json:"last_task_at"`
	LastWithdrawAt int64 `json:"last_withdraw_at"`
	LastSeenAt     int64 `json:"last_seen_at"` // any scored activity, drives the streak

	Upline     int64 `gorm:"index" json:"upline"` // referrer id, set once at creation
	RefCounter uint  `json:"ref_counter"`

	Banned        bool   `json:"banned"`
	ShadowBanned  bool   `json:"shadow_banned"`
	AbuseScore    int    `json:"abuse_score"`
	QuickStreak   int    `json:"quick_streak"`
	CooldownUntil int64  `json:"cooldown_until"`
	SessionId     string `json:"-"`

	WithdrawMin float64 `json:"withdraw_min"` // per-user override, 0 = use config
}

// UserData is the client-facing projection of a User.
type UserData struct {
	ID         int64   `json:"id"`
	Balance    float64 `json:"balance"`
	Name       string  `json:"name"`
	Username   string  `json:"username"`
	PhotoUrl   string  `json:"photo_url"`
	AdsWatched uint    `json:"ads_watched"`
	SpinsUsed  uint    `json:"spins_used"`
	TaskClicks uint    `json:"task_clicks"`
	ContestAds uint    `json:"contest_ads"`
	RefCounter uint    `json:"ref_counter"`
}

func (u *User) Data() UserData {
	return UserData{
		ID:         u.Id,
		Balance:    u.Balance,
		Name:       u.Name,
		Username:   u.Username,
		PhotoUrl:   u.PhotoUrl,
		AdsWatched: u.AdsWatched,
		SpinsUsed:  u.SpinsUsed,
		TaskClicks: u.TaskClicks,
		ContestAds: u.ContestAds,
		RefCounter: u.RefCounter,
	}
}
