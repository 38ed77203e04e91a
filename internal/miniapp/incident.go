package miniapp

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"
)

const (
	IncidentTokenReuse    = "token_reuse"
	IncidentStaleIdentity = "stale_identity"
	IncidentBadIdentity   = "bad_identity"
	IncidentDuplicateTask = "duplicate_task"
	IncidentRateViolation = "rate_violation"
	IncidentShadowBan     = "shadow_ban"
	IncidentHardBan       = "hard_ban"
)

// Incident is an append-only audit row. Client network identity is stored
// only as a salted hash so rows can be correlated without keeping PII.
type Incident struct {
	Id         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
	UserId     int64     `json:"user_id" gorm:"index"`
	Kind       string    `json:"kind" gorm:"index"`
	Detail     string    `json:"detail"`
	ClientHash string    `json:"client_hash"`
}

// ClientHash folds ip and user agent into one salted digest.
func ClientHash(ip string, userAgent string) string {
	salt := os.Getenv("INCIDENT_SALT")
	if salt == "" {
		salt = "adwatch"
	}
	sum := sha256.Sum256([]byte(salt + "|" + ip + "|" + userAgent))
	return hex.EncodeToString(sum[:16])
}

// LogIncident is best effort: a failed audit write never fails the request.
func (app *App) LogIncident(userId int64, kind string, detail string, clientHash string) {
	if app == nil || app.Db == nil {
		return
	}
	_ = app.Db.Create(&Incident{
		UserId:     userId,
		Kind:       kind,
		Detail:     detail,
		ClientHash: clientHash,
	}).Error
}
