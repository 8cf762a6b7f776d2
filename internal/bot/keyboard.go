package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/fiscalbot/internal/domain"
)

// maxButtons keeps list keyboards short.
const maxButtons = 8

// obligationKeyboard has one completion button per obligation.
func obligationKeyboard(list []domain.ObligationWithDetails) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, o := range list {
		if len(rows) == maxButtons {
			break
		}
		if o.IsCompleted() {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ "+truncate(obligationTitle(o), 40), "done:"+o.ID),
		))
	}
	if len(rows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// withoutButton returns kb minus the buttons carrying data. Emptied rows are
// dropped.
func withoutButton(kb tgbotapi.InlineKeyboardMarkup, data string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.InlineKeyboard))
	for _, row := range kb.InlineKeyboard {
		kept := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.CallbackData != nil && *btn.CallbackData == data {
				continue
			}
			kept = append(kept, btn)
		}
		if len(kept) > 0 {
			rows = append(rows, kept)
		}
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
