package handlers

import (
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler describes a handler with its match rule and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns every handler keyed by a descriptive name.
// The fallback handler is installed separately as the bot's default handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
	}
	handlers["callback:"+CallbackCheckSubscription] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     CallbackCheckSubscription,
		Handler:     NewCheckSubscriptionHandler(deps),
		MatchType:   tgbot.MatchTypeExact,
	}
	handlers[ButtonProfile] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     ButtonProfile,
		Handler:     NewProfileHandler(deps),
		MatchType:   tgbot.MatchTypeExact,
	}
	handlers[ButtonInfo] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     ButtonInfo,
		Handler:     NewInfoHandler(deps),
		MatchType:   tgbot.MatchTypeExact,
	}

	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}
	admin := NewAdminHandler(deps)

	handlers["/admin"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "admin",
		Handler:     admin,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers["/stats"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "stats",
		Handler:     admin,
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}
	handlers[ButtonAdmin] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     ButtonAdmin,
		Handler:     admin,
		MatchType:   tgbot.MatchTypeExact,
		Middleware:  adminMiddleware,
	}
	handlers["/broadcast"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "broadcast",
		Handler:     NewBroadcastHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  adminMiddleware,
	}

	return handlers
}

// PublicCommands lists the commands shown in the Telegram command menu.
// Admin commands are left out.
func PublicCommands() []models.BotCommand {
	return []models.BotCommand{
		{Command: "start", Description: "Запустить бота"},
	}
}
