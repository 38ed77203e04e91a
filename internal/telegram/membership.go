package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// ErrUnavailable covers Bot API transport or server-side failures. Callers
// must treat it as "try later", never as evidence about the user.
var ErrUnavailable = errors.New("bot api unavailable")

// Membership checks channel membership through a direct Bot API call.
type Membership struct {
	token  string
	client *resty.Client
}

func NewMembership(token string) *Membership {
	return &Membership{
		token:  token,
		client: resty.New(),
	}
}

type chatMemberResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		Status string `json:"status"`
	} `json:"result"`
}

// IsMember reports whether userId currently belongs to chatId. A false with
// nil error is a user-facing "join first"; any error is an upstream problem.
func (m *Membership) IsMember(ctx context.Context, chatId string, userId int64) (bool, error) {
	if m.token == "" {
		return false, fmt.Errorf("bot token is not set: %w", ErrUnavailable)
	}
	var body chatMemberResponse
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chat_id": chatId,
			"user_id": fmt.Sprintf("%d", userId),
		}).
		SetResult(&body).
		Get(fmt.Sprintf("https://api.telegram.org/bot%s/getChatMember", m.token))
	if err != nil {
		return false, fmt.Errorf("getChatMember: %v: %w", err, ErrUnavailable)
	}
	if resp.StatusCode() >= 500 {
		return false, fmt.Errorf("getChatMember status %d: %w", resp.StatusCode(), ErrUnavailable)
	}
	if !body.Ok {
		// A 400 with "user not found" style description is a membership "no",
		// not an outage. Permission problems on the bot side are outages.
		if resp.StatusCode() == 400 {
			return false, nil
		}
		return false, fmt.Errorf("getChatMember: %s: %w", body.Description, ErrUnavailable)
	}
	switch body.Result.Status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}
