package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// GenerateActionId hands out the single-use token that gates a mutating
// action. While a previous token for the same action is still valid the same
// one comes back, so client retries don't fight themselves.
func GenerateActionId(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, false)
	if !authed {
		return
	}
	action := strings.TrimSpace(p.Action)
	if action == "" || len(action) > 64 {
		fail(c, http.StatusBadRequest, "invalid action")
		return
	}
	user, err := resolveUser(app, userId, identity)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load account")
		return
	}
	if user.Banned {
		fail(c, http.StatusForbidden, "account suspended")
		return
	}
	sessionId := ""
	if v, hasSession := c.Get("session_id"); hasSession {
		sessionId = v.(string)
	}
	token, err := tokenManager(app).Generate(user.Id, action, sessionId)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to issue token")
		return
	}
	ok(c, gin.H{
		"action_id": token.Token,
		"action":    token.Action,
		"ttl":       miniapp.CurrentAppConfig.Settings.Windows.TokenTtlSec,
	})
}
