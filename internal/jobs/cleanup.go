package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/makremffff/adwatch-backend/internal/actiontoken"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// IncidentRetention is how long audit rows are kept before the janitor drops
// them.
const IncidentRetention = 90 * 24 * time.Hour

// Start schedules the background janitor: expired action tokens go every
// minute, old incident rows once a day. The returned cron is already running.
func Start(db *gorm.DB) *cron.Cron {
	c := cron.New()
	_, _ = c.AddFunc("* * * * *", func() {
		if err := PurgeTokens(db); err != nil {
			fmt.Println("janitor tokens:", err)
		}
	})
	_, _ = c.AddFunc("30 4 * * *", func() {
		if err := TrimIncidents(db, time.Now()); err != nil {
			fmt.Println("janitor incidents:", err)
		}
	})
	c.Start()
	return c
}

// PurgeTokens drops action tokens past their lifetime. Expired tokens are
// also removed lazily on validation, this just keeps the table from
// accumulating tokens nobody ever submitted.
func PurgeTokens(db *gorm.DB) error {
	ttl := time.Duration(miniapp.CurrentAppConfig.Settings.Windows.TokenTtlSec) * time.Second
	m := actiontoken.NewManager(db, ttl, false)
	_, err := m.PurgeExpired()
	return err
}

// TrimIncidents deletes audit rows older than the retention window.
func TrimIncidents(db *gorm.DB, now time.Time) error {
	cutoff := now.Add(-IncidentRetention)
	return db.Where("created_at < ?", cutoff).Delete(&miniapp.Incident{}).Error
}
