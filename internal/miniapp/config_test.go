package miniapp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoadAppConfigFallsBackToDefaults(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { CurrentAppConfig = DefaultAppConfig }()

	cfg := LoadAppConfig(context.Background(), rdb)
	if cfg.Settings.Rewards.AdWatch != 0.3 {
		t.Fatalf("default ad reward = %v, want 0.3", cfg.Settings.Rewards.AdWatch)
	}
	if cfg.Settings.Windows.TokenTtlSec != 60 {
		t.Fatalf("default token ttl = %d, want 60", cfg.Settings.Windows.TokenTtlSec)
	}
}

func TestLoadAppConfigAppliesRedisOverride(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { CurrentAppConfig = DefaultAppConfig }()

	override := *DefaultAppConfig
	override.Settings.Rewards.AdWatch = 0.5
	override.Settings.Caps.AdsPerDay = 10
	raw, _ := json.Marshal(override)
	if err := mr.Set("app_config", string(raw)); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	cfg := LoadAppConfig(context.Background(), rdb)
	if cfg.Settings.Rewards.AdWatch != 0.5 {
		t.Fatalf("ad reward = %v, want the override 0.5", cfg.Settings.Rewards.AdWatch)
	}
	if cfg.Settings.Caps.AdsPerDay != 10 {
		t.Fatalf("ads cap = %d, want the override 10", cfg.Settings.Caps.AdsPerDay)
	}
}

func TestLoadAppConfigIgnoresGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { CurrentAppConfig = DefaultAppConfig }()
	CurrentAppConfig = DefaultAppConfig

	_ = mr.Set("app_config", "{not json")
	cfg := LoadAppConfig(context.Background(), rdb)
	if cfg.Settings.Rewards.AdWatch != DefaultAppConfig.Settings.Rewards.AdWatch {
		t.Fatal("garbage blob replaced the running config")
	}
}
