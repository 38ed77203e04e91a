package api

import (
	"github.com/gin-gonic/gin"
)

// Every response uses the same envelope; the HTTP status carries the error
// class, the error string is what the client toasts on.
func ok(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{"ok": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"ok": false, "error": msg})
}

// requestParams is the union of every field any operation reads; the original
// client posts one flat JSON object with a type discriminator.
type requestParams struct {
	Type     string `json:"type"`
	InitData string `json:"init_data"`
	UserId   int64  `json:"user_id"`
	ActionId string `json:"action_id"`
	Action   string `json:"action"`        // for generateActionId
	Devtools bool   `json:"devtools_open"` // client-asserted, heuristic only
	TaskId   uint   `json:"task_id"`
	Ref      int64  `json:"ref"`

	Amount float64 `json:"amount"`
	Email  string  `json:"email"`
	Wallet string  `json:"wallet"`
}
