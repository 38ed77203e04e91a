package miniapp

import (
	"errors"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"github.com/makremffff/adwatch-backend/internal/telegram"
)

func EscapeMarkdownV2(text string) string {
	specialChars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	for _, char := range specialChars {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}

// SendTelegramMessage pushes an ops notification into one of the staff chats.
func SendTelegramMessage(msg string, chat string) error {
	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		err := errors.New("BOT_TOKEN is not set")
		return err
	}
	chatId := ""
	switch chat {
	case "signup":
		chatId = os.Getenv("SIGNUP_CHAT_ID")
		if chatId == "" {
			err := errors.New("SIGNUP CHAT_ID is not set")
			return err
		}
	case "finance":
		chatId = os.Getenv("FINANCE_CHAT_ID")
		if chatId == "" {
			err := errors.New("FINANCE CHAT_ID is not set")
			return err
		}
	default:
		chatId = os.Getenv("DEFAULT_CHAT_ID")
		if chatId == "" {
			err := errors.New("DEFAULT CHAT_ID is not set")
			return err
		}
	}
	chatIdInt, err := strconv.Atoi(chatId)
	if err != nil {
		return err
	}
	id := int64(chatIdInt)
	bot, err := telegram.NewBot(token)
	if err != nil {
		return err
	}
	// Send a message
	_, err = bot.Api.SendMessage(id, msg, &gotgbot.SendMessageOpts{
		ParseMode: "MarkdownV2",
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{
			IsDisabled: true,
		},
	})
	if err != nil {
		return err
	}
	return nil
}

func RoundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
