package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// Commission returns the caller's referral earnings summary.
func Commission(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, false)
	if !authed {
		return
	}
	user, err := resolveUser(app, userId, identity)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load account")
		return
	}
	stats := miniapp.GetRefStats(app, *user)
	ok(c, gin.H{
		"ref_counter": user.RefCounter,
		"stats":       stats,
	})
}
