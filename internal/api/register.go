package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/dchest/uniuri"
	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/api/jwt"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// Register is the first-contact endpoint. The signed payload is mandatory
// here regardless of policy: account creation is identity-sensitive.
func Register(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, true)
	if !authed {
		return
	}
	var user miniapp.User
	isSignup := false
	res := app.Db.Where("id = ?", userId).First(&user)
	if res.RowsAffected == 0 {
		isSignup = true
		user = miniapp.User{
			Id:       userId,
			Name:     identity.Name,
			Username: identity.Username,
			PhotoUrl: identity.PhotoUrl,
		}
		// referrer reference is set once, at creation, and never rewritten
		if p.Ref > 0 && p.Ref != userId {
			var referrer miniapp.User
			res = app.Db.Where("id = ?", p.Ref).First(&referrer)
			if res.RowsAffected == 1 {
				user.Upline = referrer.Id
				referrer.RefCounter++
				_ = app.Db.Save(&referrer).Error
			}
		}
		if err := app.Db.Create(&user).Error; err != nil {
			fail(c, http.StatusInternalServerError, "failed to create account")
			return
		}
		cpUrl := os.Getenv("CP_URL")
		msg := fmt.Sprintf(
			`New Signup [User: %d](%s/users/%d)
Name: %s`,
			user.Id,
			cpUrl,
			user.Id,
			miniapp.EscapeMarkdownV2(user.Name),
		)
		if user.Upline > 0 {
			msg = fmt.Sprintf(
				`%s
Invited by [User: %d](%s/users/%d)`,
				msg,
				user.Upline,
				cpUrl,
				user.Upline,
			)
		}
		notify(msg, "signup")
	} else {
		if identity.Name != "" {
			user.Name = identity.Name
		}
		if identity.Username != "" {
			user.Username = identity.Username
		}
		if identity.PhotoUrl != "" {
			user.PhotoUrl = identity.PhotoUrl
		}
	}
	if user.Banned {
		fail(c, http.StatusForbidden, "account suspended")
		return
	}
	user.SessionId = uniuri.NewLen(24)
	if err := app.Db.Save(&user).Error; err != nil {
		fail(c, http.StatusInternalServerError, "failed to save account")
		return
	}
	token, err := jwt.GenerateJWT(user.Id, user.SessionId)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to issue session")
		return
	}
	ok(c, gin.H{
		"user":      user.Data(),
		"is_signup": isSignup,
		"jwt":       token,
		"config":    miniapp.CurrentAppConfig.Settings,
	})
}

// GetUserData returns the full profile; identity-sensitive, so the signed
// payload is always required.
func GetUserData(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, true)
	if !authed {
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
	maybeResetDaily(app, user)
	ok(c, gin.H{
		"user":   user.Data(),
		"config": miniapp.CurrentAppConfig.Settings,
	})
}
