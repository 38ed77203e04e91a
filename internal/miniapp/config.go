package miniapp

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// AppConfig gathers every tunable the reward flow depends on. The source of
// truth is the defaults below; ops can override the whole blob through the
// "app_config" redis key, same as any other runtime setting.
type AppConfig struct {
	Settings AppSettings `json:"settings"`
}

type AppSettings struct {
	Rewards RewardSettings `json:"rewards"`
	Caps    CapSettings    `json:"caps"`
	Windows WindowSettings `json:"windows"`
	Abuse   AbuseSettings  `json:"abuse"`
	Ref     RefSettings    `json:"ref"`
	Limits  SettingLimit   `json:"limits"`
	Policy  PolicySettings `json:"policy"`
	Spin    []SpinSector   `json:"spin_sectors"`
}

type RewardSettings struct {
	AdWatch   float64 `json:"ad_watch"`   // tokens per watched ad
	TaskClick float64 `json:"task_click"` // tokens per sponsor link click
	ContestAd float64 `json:"contest_ad"` // tokens per contest ad watch
}

type CapSettings struct {
	AdsPerDay        uint `json:"ads_per_day"`
	SpinsPerDay      uint `json:"spins_per_day"`
	TaskClicksPerDay uint `json:"task_clicks_per_day"`
	ContestAdsPerDay uint `json:"contest_ads_per_day"`
}

type WindowSettings struct {
	TokenTtlSec     int64 `json:"token_ttl_sec"`     // action token lifetime
	MinActionGapSec int64 `json:"min_action_gap"`    // per-family spacing
	CapResetSec     int64 `json:"cap_reset_sec"`     // rolling window after a cap is hit
	SoftCooldownSec int64 `json:"soft_cooldown_sec"` // streak cooldown length
}

type AbuseSettings struct {
	QuickPenalty    int `json:"quick_penalty"`    // score added per too-fast action
	DevtoolsPenalty int `json:"devtools_penalty"` // score added on devtools signal
	StreakThreshold int `json:"streak_threshold"` // quick-action streak before soft cooldown
	ShadowScore     int `json:"shadow_score"`     // score at which rewards go fictitious
	BanScore        int `json:"ban_score"`        // score at which the account is locked
}

type RefSettings struct {
	Commission float64 `json:"commission"` // referrer share of each reward
}

type SettingLimit struct {
	WithdrawMin float64 `json:"withdraw_min"`
}

// PolicySettings captures the switches earlier revisions of this service kept
// flip-flopping on. The defaults are the corrected behaviors.
type PolicySettings struct {
	// ConsumeOnValidate burns the action token during validation instead of
	// after the balance write. Superseded: a failed write then strands the
	// client with no token and no reward.
	ConsumeOnValidate bool `json:"consume_on_validate"`
	// StrictIdentity requires a signed init data payload on every mutating
	// request, not just register/getUserData.
	StrictIdentity bool `json:"strict_identity"`
}

type SpinSector struct {
	Prize  float64 `json:"prize"`
	Weight uint    `json:"weight"`
}

var (
	DefaultAppConfig *AppConfig
	CurrentAppConfig *AppConfig
)

func init() {
	DefaultAppConfig = &AppConfig{
		Settings: AppSettings{
			Rewards: RewardSettings{
				AdWatch:   0.3,
				TaskClick: 0.5,
				ContestAd: 0.2,
			},
			Caps: CapSettings{
				AdsPerDay:        200,
				SpinsPerDay:      50,
				TaskClicksPerDay: 40,
				ContestAdsPerDay: 20,
			},
			Windows: WindowSettings{
				TokenTtlSec:     60,
				MinActionGapSec: 3,
				CapResetSec:     6 * 60 * 60,
				SoftCooldownSec: 30,
			},
			Abuse: AbuseSettings{
				QuickPenalty:    5,
				DevtoolsPenalty: 25,
				StreakThreshold: 3,
				ShadowScore:     60,
				BanScore:        120,
			},
			Ref: RefSettings{
				Commission: 0.07,
			},
			Limits: SettingLimit{
				WithdrawMin: 100,
			},
			Policy: PolicySettings{
				ConsumeOnValidate: false,
				StrictIdentity:    false,
			},
			Spin: []SpinSector{
				{Prize: 0, Weight: 25},
				{Prize: 0.1, Weight: 22},
				{Prize: 0.2, Weight: 18},
				{Prize: 0.3, Weight: 14},
				{Prize: 0.5, Weight: 10},
				{Prize: 1, Weight: 6},
				{Prize: 2, Weight: 4},
				{Prize: 5, Weight: 1},
			},
		},
	}
	CurrentAppConfig = DefaultAppConfig
}

// LoadAppConfig refreshes CurrentAppConfig from redis, falling back to the
// defaults when the key is missing or unparsable.
func LoadAppConfig(ctx context.Context, rdb *redis.Client) *AppConfig {
	if rdb == nil {
		return CurrentAppConfig
	}
	appConfigRaw, _ := rdb.Get(ctx, "app_config").Result()
	if len(appConfigRaw) > 0 {
		loaded := &AppConfig{}
		if err := json.Unmarshal([]byte(appConfigRaw), loaded); err == nil {
			CurrentAppConfig = loaded
		}
	}
	return CurrentAppConfig
}
