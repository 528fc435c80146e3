package handlers

import (
	"context"
	"errors"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"mindcheck-bot/internal/checkin"
	"mindcheck-bot/internal/config"
	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/models"
	"mindcheck-bot/internal/session"
	"mindcheck-bot/internal/storage"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Coach answers free-form coach chat. Like checkin.Analyzer it never fails.
type Coach interface {
	Chat(ctx context.Context, history []models.ChatTurn, locale string) string
}

type Handler struct {
	Bot       Sender
	DB        *storage.DB
	Sessions  session.Store
	Finalizer *checkin.Finalizer
	Coach     Coach
	Cfg       config.Config
	log       *slog.Logger
}

func NewHandler(bot Sender, db *storage.DB, sessions session.Store, analyzer checkin.Analyzer, coach Coach, cfg config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		Bot:      bot,
		DB:       db,
		Sessions: sessions,
		Coach:    coach,
		Cfg:      cfg,
		log:      logger,
	}
	h.Finalizer = checkin.NewFinalizer(db, analyzer, h, logger)
	return h
}

type loggerKey struct{}

func (h *Handler) logger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return h.log
}

// HandleUpdate routes one Telegram update. Errors are logged and the update dropped.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	log := h.log.With("event_id", uuid.NewString(), "update_id", upd.UpdateID)

	var err error
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		log = log.With("chat_id", upd.Message.Chat.ID)
		ctx = context.WithValue(ctx, loggerKey{}, log)
		err = h.HandleMessage(ctx, upd.Message)

	case upd.CallbackQuery != nil:
		if upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil {
			log = log.With("chat_id", upd.CallbackQuery.Message.Chat.ID)
		}
		ctx = context.WithValue(ctx, loggerKey{}, log)
		err = h.HandleCallback(ctx, upd.CallbackQuery)

	default:
		return
	}

	if err != nil {
		log.Error("update failed", "error", err)
	}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.IsCommand() {
		return h.HandleCommand(ctx, msg)
	}
	return h.HandleText(ctx, msg)
}

// Notify sends plain text. It makes Handler the finalizer's transport.
func (h *Handler) Notify(_ context.Context, chatID int64, text string) error {
	_, err := h.Bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (h *Handler) send(c tgbotapi.Chattable) error {
	_, err := h.Bot.Send(c)
	return err
}

func fromLocale(u *tgbotapi.User) string {
	if u == nil {
		return i18n.DefaultLang
	}
	return i18n.Or(u.LanguageCode)
}

// locale prefers the stored language and falls back to the client's.
func (h *Handler) locale(ctx context.Context, chatID int64, from *tgbotapi.User) string {
	if u, err := h.DB.GetUser(ctx, chatID); err == nil {
		return i18n.Or(u.Language)
	}
	return fromLocale(from)
}

// requireUser loads the user. A missing user gets the onboarding hint and
// (nil, nil) is returned.
func (h *Handler) requireUser(ctx context.Context, chatID int64, from *tgbotapi.User) (*models.User, error) {
	u, err := h.DB.GetUser(ctx, chatID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, h.Notify(ctx, chatID, i18n.T("not_onboarded", fromLocale(from)))
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// requireConsent is requireUser plus the consent gate.
func (h *Handler) requireConsent(ctx context.Context, chatID int64, from *tgbotapi.User) (*models.User, error) {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return nil, err
	}
	if !u.ConsentGiven {
		return nil, h.Notify(ctx, chatID, i18n.T("consent_required", u.Language))
	}
	return u, nil
}
