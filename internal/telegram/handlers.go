package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (br *Bridge) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := br.logger.With("handler", "start")

	if update.Message == nil {
		log.WarnContext(ctx, "Start handler received update with nil message", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID)

	br.reply(ctx, b, chatID, br.Start(ctx, chatID))
}

func (br *Bridge) handleMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		br.logger.DebugContext(ctx, "Ignoring update without text", "update_id", update.ID)
		return
	}

	chatID := msg.Chat.ID
	sendTyping(ctx, b, chatID)
	br.reply(ctx, b, chatID, br.Respond(ctx, chatID, msg.Text))
}

func (br *Bridge) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	text = PlainText(text)
	if text == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	if _, err := b.SendMessage(sendCtx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		br.logger.ErrorContext(ctx, "Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func sendTyping(ctx context.Context, b *bot.Bot, chatID int64) {
	_, _ = b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
}
