package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makremffff/adwatch-backend/internal/abuse"
	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// GetTasks lists active tasks with the caller's completion state.
func GetTasks(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, false)
	if !authed {
		return
	}
	user, err := resolveUser(app, userId, identity)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to load account")
		return
	}
	var tasks []miniapp.Task
	app.Db.Where("active = ?", true).Order("id ASC").Find(&tasks)
	var completions []miniapp.TaskCompletion
	app.Db.Where("user_id = ?", user.Id).Find(&completions)
	completed := map[uint]bool{}
	for _, completion := range completions {
		completed[completion.TaskId] = true
	}
	list := make([]miniapp.TaskData, 0, len(tasks))
	for _, task := range tasks {
		list = append(list, miniapp.TaskData{Task: task, Completed: completed[task.Id]})
	}
	ok(c, gin.H{"tasks": list})
}

func taskAction(taskId uint) string {
	return fmt.Sprintf("completeTask:%d", taskId)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}

// CompleteTask rewards a task at most once per user. Channel tasks are gated
// on a live membership check; a "not a member" answer and a Bot API outage
// are both user-facing outcomes, never abuse signals. A duplicate claim is.
func CompleteTask(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, false)
	if !authed {
		return
	}
	if p.TaskId == 0 {
		fail(c, http.StatusBadRequest, "task_id is required")
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
	var task miniapp.Task
	res := app.Db.Where("id = ? AND active = ?", p.TaskId, true).First(&task)
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, "task not found")
		return
	}
	if !validateToken(c, app, user, taskAction(task.Id), p.ActionId) {
		return
	}
	if !checkAbuse(c, app, user, abuse.FamilyTask, p.Devtools) {
		return
	}
	if task.Cap > 0 {
		var claimed int64
		app.Db.Model(&miniapp.TaskCompletion{}).Where("task_id = ?", task.Id).Count(&claimed)
		if claimed >= int64(task.Cap) {
			fail(c, http.StatusForbidden, "task is full")
			return
		}
	}
	if task.Type == miniapp.TaskTypeChannel {
		member, err := app.Membership.IsMember(c.Request.Context(), task.ChatId, user.Id)
		if err != nil {
			// upstream trouble is not the user's fault and not a signal
			fail(c, http.StatusServiceUnavailable, "membership check unavailable, try later")
			return
		}
		if !member {
			fail(c, http.StatusForbidden, "join the channel first")
			return
		}
	}
	completion := miniapp.TaskCompletion{UserId: user.Id, TaskId: task.Id, Reward: task.Reward}
	if user.ShadowBanned {
		// shadowed accounts write no completion row, so the duplicate check
		// has to be a plain read
		var existing miniapp.TaskCompletion
		res = app.Db.Where("user_id = ? AND task_id = ?", user.Id, task.Id).First(&existing)
		if res.RowsAffected == 1 {
			app.LogIncident(user.Id, miniapp.IncidentDuplicateTask, taskAction(task.Id), clientHash(c))
			fail(c, http.StatusForbidden, "task already completed")
			return
		}
	}
	now := time.Now().Unix()
	err = commitReward(app, user, taskAction(task.Id), p.ActionId, func(u *miniapp.User) {
		u.Balance = miniapp.RoundFloat(u.Balance+task.Reward, 4)
		abuse.SetFamilyStamp(u, abuse.FamilyTask, now)
	}, func(tx *gorm.DB) error {
		// the composite key makes the claim atomic: one of two racing
		// submissions loses here with a conflict
		return tx.Create(&completion).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			app.LogIncident(user.Id, miniapp.IncidentDuplicateTask, taskAction(task.Id), clientHash(c))
			fail(c, http.StatusForbidden, "task already completed")
			return
		}
		failReward(c, app, user, taskAction(task.Id), err)
		return
	}
	enqueueCommission(app, user, task.Reward)
	ok(c, gin.H{
		"reward": task.Reward,
		"user":   user.Data(),
	})
}

// TaskLinkClick has the ad-watch shape against the shared task family and its
// own daily cap.
func TaskLinkClick(c *gin.Context, app *miniapp.App, p *requestParams) {
	userId, identity, authed := authenticate(c, app, p, false)
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
	if !validateToken(c, app, user, "taskLinkClick", p.ActionId) {
		return
	}
	if !checkAbuse(c, app, user, abuse.FamilyTask, p.Devtools) {
		return
	}
	cfg := miniapp.CurrentAppConfig.Settings
	if user.TaskClicks >= cfg.Caps.TaskClicksPerDay {
		fail(c, http.StatusForbidden, "daily click limit reached")
		return
	}
	reward := cfg.Rewards.TaskClick
	now := time.Now().Unix()
	err = commitReward(app, user, "taskLinkClick", p.ActionId, func(u *miniapp.User) {
		u.Balance = miniapp.RoundFloat(u.Balance+reward, 4)
		u.TaskClicks++
		if u.TaskClicks >= cfg.Caps.TaskClicksPerDay {
			u.TaskClicksAt = now
		}
		abuse.SetFamilyStamp(u, abuse.FamilyTask, now)
	}, nil)
	if err != nil {
		failReward(c, app, user, "taskLinkClick", err)
		return
	}
	enqueueCommission(app, user, reward)
	ok(c, gin.H{
		"reward": reward,
		"user":   user.Data(),
	})
}
