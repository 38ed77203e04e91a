package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// Dispatch is the single POST entry point; the body's type field selects the
// operation.
func Dispatch(c *gin.Context) {
	app := c.MustGet("app").(*miniapp.App)
	var p requestParams
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "malformed request")
		return
	}
	switch p.Type {
	case "register":
		Register(c, app, &p)
	case "getUserData":
		GetUserData(c, app, &p)
	case "getTasks":
		GetTasks(c, app, &p)
	case "generateActionId":
		GenerateActionId(c, app, &p)
	case "watchAd":
		WatchAd(c, app, &p)
	case "preSpin":
		PreSpin(c, app, &p)
	case "spinResult":
		SpinResult(c, app, &p)
	case "completeTask":
		CompleteTask(c, app, &p)
	case "taskLinkClick":
		TaskLinkClick(c, app, &p)
	case "withdraw":
		Withdraw(c, app, &p)
	case "commission":
		Commission(c, app, &p)
	case "getContestData":
		GetContestData(c, app, &p)
	case "contestWatchAd":
		ContestWatchAd(c, app, &p)
	case "getContestRank":
		GetContestRank(c, app, &p)
	default:
		fail(c, http.StatusNotFound, "unknown request type")
	}
}
