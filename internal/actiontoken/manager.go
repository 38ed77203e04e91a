package actiontoken

import (
	"errors"
	"time"

	"github.com/dchest/uniuri"
	"gorm.io/gorm"
)

// Token is a one-time authorization for a single (user, action) pair. Per-task
// tokens namespace the action as "completeTask:<id>".
type Token struct {
	Token     string    `json:"action_id" gorm:"primaryKey"`
	UserId    int64     `json:"user_id" gorm:"index:idx_user_action"`
	Action    string    `json:"action" gorm:"index:idx_user_action"`
	SessionId string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	// ErrMissing - the client supplied no token at all.
	ErrMissing = errors.New("action token missing")
	// ErrNotFound - unknown or already consumed token. Treat as a replay signal.
	ErrNotFound = errors.New("action token invalid or already used")
	// ErrExpired - the token outlived its window. Benign, not a signal.
	ErrExpired = errors.New("action token expired")
)

type Manager struct {
	Db  *gorm.DB
	Ttl time.Duration
	// ConsumeOnValidate reproduces the superseded check-and-consume revision.
	// Left off, Validate only confirms and Consume burns the token after the
	// balance write lands.
	ConsumeOnValidate bool

	now func() time.Time
}

func NewManager(db *gorm.DB, ttl time.Duration, consumeOnValidate bool) *Manager {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Manager{
		Db:                db,
		Ttl:               ttl,
		ConsumeOnValidate: consumeOnValidate,
		now:               time.Now,
	}
}

// Generate returns the still-valid token for (user, action) if one exists so
// client retries don't churn tokens, otherwise mints a fresh one.
func (m *Manager) Generate(userId int64, action string, sessionId string) (*Token, error) {
	var existing Token
	res := m.Db.Where("user_id = ? AND action = ?", userId, action).First(&existing)
	if res.Error == nil {
		if m.now().Sub(existing.CreatedAt) < m.Ttl {
			return &existing, nil
		}
		m.Db.Where("token = ?", existing.Token).Delete(&Token{})
	} else if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, res.Error
	}
	minted := Token{
		Token:     uniuri.NewLen(48),
		UserId:    userId,
		Action:    action,
		SessionId: sessionId,
		CreatedAt: m.now(),
	}
	if err := m.Db.Create(&minted).Error; err != nil {
		return nil, err
	}
	return &minted, nil
}

// Validate checks that token authorizes (user, action). Expired rows are
// deleted on discovery. With ConsumeOnValidate the row is burned here too.
func (m *Manager) Validate(userId int64, action string, token string) error {
	if token == "" {
		return ErrMissing
	}
	var row Token
	res := m.Db.Where("token = ? AND user_id = ? AND action = ?", token, userId, action).First(&row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return res.Error
	}
	if m.now().Sub(row.CreatedAt) >= m.Ttl {
		m.Db.Where("token = ?", row.Token).Delete(&Token{})
		return ErrExpired
	}
	if m.ConsumeOnValidate {
		return m.Consume(userId, action, token)
	}
	return nil
}

// Consume deletes the token conditionally; the affected-row count makes the
// consumption atomic, so two racing submissions cannot both win.
func (m *Manager) Consume(userId int64, action string, token string) error {
	if token == "" {
		return ErrMissing
	}
	res := m.Db.Where("token = ? AND user_id = ? AND action = ?", token, userId, action).Delete(&Token{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpired drops every token past its window. The janitor calls this so
// abandoned tokens don't pile up waiting for a validate to find them.
func (m *Manager) PurgeExpired() (int64, error) {
	cutoff := m.now().Add(-m.Ttl)
	res := m.Db.Where("created_at <= ?", cutoff).Delete(&Token{})
	return res.RowsAffected, res.Error
}
