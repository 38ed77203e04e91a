package miniapp

import "time"

const (
	TaskTypeChannel = "channel" // gated on a getChatMember check
	TaskTypeLink    = "link"    // generic visit-the-link task
)

type Task struct {
	Id        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Link      string    `json:"link"`
	ChatId    string    `json:"chat_id"` // channel id/@handle for membership checks
	Reward    float64   `json:"reward"`
	Cap       uint      `json:"cap"` // participant cap, 0 = unlimited
	Type      string    `json:"type"`
	Active    bool      `json:"active" gorm:"index"`
}

// TaskCompletion enforces at-most-once per (user, task) through its composite
// primary key; a duplicate insert surfaces as a conflict, not a second reward.
type TaskCompletion struct {
	CreatedAt time.Time `json:"created_at"`
	UserId    int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	TaskId    uint      `json:"task_id" gorm:"primaryKey;autoIncrement:false"`
	Reward    float64   `json:"reward"`
}

// TaskData is a Task joined with the requesting user's completion state.
type TaskData struct {
	Task
	Completed bool `json:"completed"`
}
