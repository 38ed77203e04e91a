package actiontoken

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Token{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewManager(db, 60*time.Second, false)
}

func TestGenerateReturnsSameTokenWhileValid(t *testing.T) {
	m := newTestManager(t)

	first, err := m.Generate(555, "watchAd", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(first.Token) != 48 {
		t.Fatalf("unexpected token length: %d", len(first.Token))
	}

	second, err := m.Generate(555, "watchAd", "")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if second.Token != first.Token {
		t.Fatalf("expected idempotent re-issue, got a new token")
	}
}

func TestGenerateMintsFreshTokenAfterExpiry(t *testing.T) {
	m := newTestManager(t)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	first, err := m.Generate(555, "watchAd", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	clock = clock.Add(61 * time.Second)
	second, err := m.Generate(555, "watchAd", "")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if second.Token == first.Token {
		t.Fatalf("expected a fresh token after expiry")
	}
	// the stale row must be gone
	if err := m.Validate(555, "watchAd", first.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale token should be deleted, got %v", err)
	}
}

func TestGenerateKeepsActionsIndependent(t *testing.T) {
	m := newTestManager(t)

	ad, _ := m.Generate(555, "watchAd", "")
	spin, _ := m.Generate(555, "spinResult", "")
	if ad.Token == spin.Token {
		t.Fatalf("tokens for different actions must differ")
	}
	if err := m.Validate(555, "watchAd", ad.Token); err != nil {
		t.Fatalf("validate ad token: %v", err)
	}
	if err := m.Validate(555, "spinResult", spin.Token); err != nil {
		t.Fatalf("validate spin token: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	m := newTestManager(t)

	if err := m.Validate(555, "watchAd", ""); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected missing error, got %v", err)
	}
	if err := m.Validate(555, "watchAd", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}

	tok, _ := m.Generate(555, "watchAd", "")
	// wrong user and wrong action both must read as not found
	if err := m.Validate(556, "watchAd", tok.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for wrong user, got %v", err)
	}
	if err := m.Validate(555, "spinResult", tok.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for wrong action, got %v", err)
	}
}

func TestValidateExpiredDeletesRow(t *testing.T) {
	m := newTestManager(t)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	tok, _ := m.Generate(555, "watchAd", "")
	clock = clock.Add(60 * time.Second)

	if err := m.Validate(555, "watchAd", tok.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
	// second look must not report expired again: the row is gone
	if err := m.Validate(555, "watchAd", tok.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after expiry cleanup, got %v", err)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	m := newTestManager(t)

	tok, _ := m.Generate(555, "spinResult", "")
	if err := m.Validate(555, "spinResult", tok.Token); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := m.Consume(555, "spinResult", tok.Token); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := m.Consume(555, "spinResult", tok.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second consume must fail, got %v", err)
	}
	if err := m.Validate(555, "spinResult", tok.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("validate after consume must fail, got %v", err)
	}
}

func TestConsumeOnValidatePolicy(t *testing.T) {
	m := newTestManager(t)
	m.ConsumeOnValidate = true

	tok, _ := m.Generate(555, "watchAd", "")
	if err := m.Validate(555, "watchAd", tok.Token); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := m.Validate(555, "watchAd", tok.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("token must be burned by validate, got %v", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	m := newTestManager(t)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	old, _ := m.Generate(555, "watchAd", "")
	clock = clock.Add(45 * time.Second)
	fresh, _ := m.Generate(555, "spinResult", "")
	clock = clock.Add(20 * time.Second)

	purged, err := m.PurgeExpired()
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged token, got %d", purged)
	}
	if err := m.Validate(555, "watchAd", old.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old token should be purged, got %v", err)
	}
	if err := m.Validate(555, "spinResult", fresh.Token); err != nil {
		t.Fatalf("fresh token should survive purge: %v", err)
	}
}
