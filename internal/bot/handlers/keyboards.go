package handlers

import "github.com/go-telegram/bot/models"

// Button labels double as handler patterns.
const (
	ButtonOpenApp    = "📱 Открыть приложение"
	ButtonProfile    = "👤 Профиль"
	ButtonInfo       = "ℹ️ Инфо"
	ButtonAdmin      = "⚙️ Админка"
	ButtonSubscribe  = "📢 Подписаться на канал"
	ButtonSubscribed = "✅ Я подписался"

	CallbackCheckSubscription = "check_subscription"
)

func subscriptionKeyboard(channelURL string) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, 2)
	if channelURL != "" {
		rows = append(rows, []models.InlineKeyboardButton{{Text: ButtonSubscribe, URL: channelURL}})
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: ButtonSubscribed, CallbackData: CallbackCheckSubscription}})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// mainMenuKeyboard adds the admin row only for admins.
func mainMenuKeyboard(webAppURL string, isAdmin bool) *models.ReplyKeyboardMarkup {
	var rows [][]models.KeyboardButton
	if webAppURL != "" {
		rows = append(rows, []models.KeyboardButton{{Text: ButtonOpenApp, WebApp: &models.WebAppInfo{URL: webAppURL}}})
	}
	rows = append(rows, []models.KeyboardButton{{Text: ButtonProfile}, {Text: ButtonInfo}})
	if isAdmin {
		rows = append(rows, []models.KeyboardButton{{Text: ButtonAdmin}})
	}
	return &models.ReplyKeyboardMarkup{
		Keyboard:       rows,
		ResizeKeyboard: true,
	}
}
