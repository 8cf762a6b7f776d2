package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/config"
	"github.com/tazhate/fiscalbot/internal/service"
)

type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          *config.Config
	obligations  *service.ObligationService
	dashboard    *service.DashboardService
	generator    *service.Generator
	logger       *zap.Logger
	now          func() time.Time
	handlerCtx   context.Context
	handlerAbort context.CancelFunc
}

func New(cfg *config.Config, obligationSvc *service.ObligationService, dashboardSvc *service.DashboardService, generator *service.Generator, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, cfg.TelegramEndpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger = logger.Named("bot")
	logger.Info("authorized", zap.String("username", api.Self.UserName))

	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		api:          api,
		cfg:          cfg,
		obligations:  obligationSvc,
		dashboard:    dashboardSvc,
		generator:    generator,
		logger:       logger,
		now:          cfg.Now,
		handlerCtx:   ctx,
		handlerAbort: cancel,
	}

	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "hoje", Description: "📌 Vencidas e de hoje"},
		{Command: "semana", Description: "🗓 Próximos 7 dias"},
		{Command: "atrasadas", Description: "⏰ Obrigações atrasadas"},
		{Command: "painel", Description: "📊 Resumo do painel"},
		{Command: "produtividade", Description: "📈 Produtividade"},
		{Command: "gerar", Description: "🔁 Gerar recorrências"},
		{Command: "help", Description: "❓ Ajuda"},
	}

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.logger.Warn("set commands failed", zap.Error(err))
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		b.logger.Warn("webhook last error", zap.String("message", info.LastErrorMessage))
	}

	b.logger.Info("webhook set", zap.String("url", webhookURL))
	return nil
}

// WebhookHandler receives updates pushed by Telegram. Mounted at /bot.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := b.api.HandleUpdate(r)
		if err != nil {
			b.logger.Warn("bad webhook update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		go b.handleUpdate(b.handlerCtx, *update)
		w.WriteHeader(http.StatusOK)
	})
}

// Start long-polls for updates unless a webhook is configured, and blocks
// until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.WebhookURL != "" {
		if err := b.SetupWebhook(); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("delete webhook failed", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

// Stop cancels in-flight webhook handlers.
func (b *Bot) Stop() {
	b.handlerAbort()
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// recipients are the chats that receive scheduled messages.
func (b *Bot) recipients() []int64 {
	ids := []int64{b.cfg.OwnerTelegramID}
	if b.cfg.PartnerTelegramID != 0 {
		ids = append(ids, b.cfg.PartnerTelegramID)
	}
	return ids
}

func (b *Bot) broadcast(text string) error {
	var firstErr error
	for _, id := range b.recipients() {
		if err := b.SendMessage(id, text); err != nil {
			b.logger.Error("send message failed", zap.Int64("chat_id", id), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendMorningDigest sends critical and this-week obligations to the owner
// and partner.
func (b *Bot) SendMorningDigest(ctx context.Context) error {
	now := b.now()
	snap, err := b.dashboard.Snapshot(ctx, now)
	if err != nil {
		return fmt.Errorf("dashboard snapshot: %w", err)
	}
	return b.broadcast(formatDigest(snap, now))
}

// NotifyGeneration tells the owner what a scheduled generation pass did.
// Passes that changed nothing stay silent.
func (b *Bot) NotifyGeneration(_ context.Context, result service.GenerationResult) error {
	if len(result.Created) == 0 && len(result.Failures) == 0 {
		return nil
	}
	return b.SendMessage(b.cfg.OwnerTelegramID, formatGeneration(result))
}
