package worker

import (
	"fmt"

	"github.com/makremffff/adwatch-backend/internal/miniapp"
)

// NotifyTask sends one ops Telegram message through the pool so the HTTP
// handler never waits on the Bot API.
type NotifyTask struct {
	Message string
	Chat    string
}

func (t NotifyTask) Execute() {
	if err := miniapp.SendTelegramMessage(t.Message, t.Chat); err != nil {
		fmt.Println("notify:", t.Chat, err)
	}
}
