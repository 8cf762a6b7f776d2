package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/service"
)

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedUser(msg.From.ID) {
		b.reply(chatID, "⛔ Acesso negado")
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.reply(chatID, "Use /help para ver os comandos disponíveis.")
}

// performer names the Telegram user in audit entries.
func performer(from *tgbotapi.User) string {
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = from.UserName
	}
	return name
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("answer callback failed", zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if !b.cfg.IsAllowedUser(callback.From.ID) {
		b.answer(callback.ID, "⛔ Acesso negado")
		return
	}

	action, id, ok := strings.Cut(callback.Data, ":")
	if !ok || id == "" {
		b.answer(callback.ID, "")
		return
	}

	switch action {
	case "done":
		o, err := b.obligations.UpdateStatus(ctx, id, domain.StatusCompleted, performer(callback.From))
		switch {
		case errors.Is(err, service.ErrNotFound):
			b.answer(callback.ID, "Obrigação não encontrada")
			return
		case err != nil:
			b.logger.Error("complete obligation failed", zap.String("obligation_id", id), zap.Error(err))
			b.answer(callback.ID, "❌ Erro ao concluir")
			return
		}
		b.answer(callback.ID, "✅ Concluída!")
		b.logger.Info("obligation completed via telegram",
			zap.String("obligation_id", o.ID),
			zap.String("by", o.CompletedBy),
		)
		if callback.Message != nil {
			b.dropButton(callback.Message, id)
		}

	default:
		b.answer(callback.ID, "")
	}
}

// dropButton removes the completed obligation's button from the message.
func (b *Bot) dropButton(msg *tgbotapi.Message, id string) {
	if msg.ReplyMarkup == nil {
		return
	}
	kb := withoutButton(*msg.ReplyMarkup, "done:"+id)
	edit := tgbotapi.NewEditMessageReplyMarkup(msg.Chat.ID, msg.MessageID, kb)
	if _, err := b.api.Request(edit); err != nil {
		b.logger.Warn("edit keyboard failed", zap.Error(err))
	}
}
