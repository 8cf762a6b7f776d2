package bot

import (
	"context"
	"fmt"
	"html"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/domain"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.cmdStart(msg)
	case "help":
		b.cmdHelp(chatID)
	case "hoje":
		b.cmdToday(ctx, chatID)
	case "semana":
		b.cmdWeek(ctx, chatID)
	case "atrasadas":
		b.cmdOverdue(ctx, chatID)
	case "painel":
		b.cmdDashboard(ctx, chatID)
	case "produtividade":
		b.cmdProductivity(ctx, chatID)
	case "gerar":
		b.cmdGenerate(ctx, chatID)
	default:
		b.reply(chatID, "Comando desconhecido. /help para a lista de comandos")
	}
}

// reply sends text and logs delivery failures.
func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		b.logger.Error("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) replyError(chatID int64, action string, err error) {
	b.logger.Error(action+" failed", zap.Error(err))
	b.reply(chatID, "❌ Erro: "+html.EscapeString(err.Error()))
}

func (b *Bot) cmdStart(msg *tgbotapi.Message) {
	name := msg.From.FirstName
	b.reply(msg.Chat.ID, fmt.Sprintf("👋 Olá, %s!\n\nEu acompanho as obrigações fiscais do escritório.\n\n/help para a lista de comandos", html.EscapeString(name)))
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Comandos:</b>

<b>Obrigações</b>
/hoje - vencidas e de hoje
/semana - próximos 7 dias
/atrasadas - somente as atrasadas

<b>Relatórios</b>
/painel - resumo do painel
/produtividade - métricas de conclusão

<b>Rotinas</b>
/gerar - gerar as próximas recorrências

/help - esta ajuda`

	b.reply(chatID, text)
}

func (b *Bot) cmdToday(ctx context.Context, chatID int64) {
	now := b.now()
	snap, err := b.dashboard.Snapshot(ctx, now)
	if err != nil {
		b.replyError(chatID, "dashboard snapshot", err)
		return
	}
	b.sendList(chatID, formatList("🚨 <b>Vencidas e de hoje</b>", snap.Critical, now, "Nada vencendo hoje. ✅"), snap.Critical)
}

func (b *Bot) cmdWeek(ctx context.Context, chatID int64) {
	now := b.now()
	snap, err := b.dashboard.Snapshot(ctx, now)
	if err != nil {
		b.replyError(chatID, "dashboard snapshot", err)
		return
	}
	b.sendList(chatID, formatList("🗓 <b>Próximos 7 dias</b>", snap.ThisWeek, now, "Nada para os próximos 7 dias."), snap.ThisWeek)
}

func (b *Bot) cmdOverdue(ctx context.Context, chatID int64) {
	now := b.now()
	overdue, err := b.dashboard.Overdue(ctx, now)
	if err != nil {
		b.replyError(chatID, "list overdue", err)
		return
	}
	b.sendList(chatID, formatList("⏰ <b>Atrasadas</b>", overdue, now, "Nenhuma obrigação atrasada. 🎉"), overdue)
}

// sendList attaches completion buttons when the list is not empty.
func (b *Bot) sendList(chatID int64, text string, list []domain.ObligationWithDetails) {
	if kb := obligationKeyboard(list); kb != nil {
		if err := b.SendMessageWithKeyboard(chatID, text, *kb); err != nil {
			b.logger.Error("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return
	}
	b.reply(chatID, text)
}

func (b *Bot) cmdDashboard(ctx context.Context, chatID int64) {
	snap, err := b.dashboard.Snapshot(ctx, b.now())
	if err != nil {
		b.replyError(chatID, "dashboard snapshot", err)
		return
	}
	b.reply(chatID, formatDashboard(snap))
}

func (b *Bot) cmdProductivity(ctx context.Context, chatID int64) {
	now := b.now()
	start, end := monthToDate(now)
	r, err := b.dashboard.Productivity(ctx, start, end)
	if err != nil {
		b.replyError(chatID, "productivity report", err)
		return
	}
	b.reply(chatID, formatProductivity(r))
}

// monthToDate spans the current month up to today.
func monthToDate(now time.Time) (time.Time, time.Time) {
	start, _ := domain.MonthBounds(now)
	return start, now
}

func (b *Bot) cmdGenerate(ctx context.Context, chatID int64) {
	result, err := b.generator.CheckAndGenerateRecurrences(ctx)
	if err != nil {
		b.replyError(chatID, "generation", err)
		return
	}
	b.reply(chatID, formatGeneration(result))
}
