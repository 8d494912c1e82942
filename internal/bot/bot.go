package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"earning_bot/internal/logger"
	"earning_bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramAPI - то, что нужно от tgbotapi.BotAPI; в тестах подменяется
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps - сервисы, которыми пользуется бот
type Deps struct {
	Accounts    *service.AccountService
	Withdrawals *service.WithdrawalService
	Referrals   *service.ReferralService
	AdminIDs    []int64 // Telegram ID пользователей с правами админа
	WebAppURL   string
}

// Bot - пользовательские команды, админские команды и уведомления
type Bot struct {
	api         telegramAPI
	accounts    *service.AccountService
	withdrawals *service.WithdrawalService
	referrals   *service.ReferralService
	adminIDs    []int64
	webAppURL   string
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	log         *slog.Logger
}

// New авторизуется в Telegram и собирает бота
func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b := newBot(api, deps)
	b.log.Info("bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newBot(api telegramAPI, deps Deps) *Bot {
	return &Bot{
		api:         api,
		accounts:    deps.Accounts,
		withdrawals: deps.Withdrawals,
		referrals:   deps.Referrals,
		adminIDs:    deps.AdminIDs,
		webAppURL:   deps.WebAppURL,
		stopCh:      make(chan struct{}),
		log:         logger.With("component", "bot"),
	}
}

// Start запускает прослушивание апдейтов, блокирует до Stop
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil || !update.Message.IsCommand() {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(msg)
			}(update.Message)
		}
	}
}

// Stop плавно останавливает бота
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		b.log.Info("stopping bot...")
		close(b.stopCh)
		b.api.StopReceivingUpdates()
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *Bot) isAdmin(tgID int64) bool {
	for _, id := range b.adminIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

// handleMessage: сначала пользовательские команды, потом админские
func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply := tgbotapi.NewMessage(msg.Chat.ID, "")
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = msg.MessageID

	switch cmd := msg.Command(); {
	case cmd == "start":
		reply.Text = b.handleStart(ctx, msg)
		if b.webAppURL != "" {
			reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🚀 Open App", b.webAppURL)),
			)
		}
	case cmd == "balance":
		reply.Text = b.handleBalance(ctx, msg.From.ID)
	case cmd == "ref":
		reply.Text = b.handleRef(ctx, msg.From.ID)
	case b.isAdmin(msg.From.ID):
		reply.Text = b.handleAdminCommand(withActor(ctx, msg.From.ID), cmd, msg.CommandArguments())
	case cmd == "help":
		reply.Text = userHelp
	default:
		reply.Text = "❌ Неизвестная команда. Используйте /help для списка команд."
	}

	if _, err := b.api.Send(reply); err != nil {
		b.log.Error("error sending message", "chat_id", msg.Chat.ID, "error", err)
	}
}
