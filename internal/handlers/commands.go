package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcheck-bot/internal/checkin"
	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/messages"
	"mindcheck-bot/internal/models"
	"mindcheck-bot/internal/reminders"
)

func (h *Handler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return h.HandleStart(ctx, chatID, msg.From)
	case "help":
		return h.Notify(ctx, chatID, i18n.T("help", h.locale(ctx, chatID, msg.From)))
	case "lang":
		return h.HandleLang(ctx, chatID, msg.From)
	case "settings":
		return h.HandleSettings(ctx, chatID, msg.From)
	case "reminders":
		return h.HandleReminders(ctx, chatID, msg.From)
	case "checkin":
		return h.StartCheckin(ctx, chatID, msg.From)
	case "stats":
		return h.HandleStats(ctx, chatID, msg.From)
	case "export":
		return h.HandleExport(ctx, chatID, msg.From)
	case "delete_me":
		return h.HandleDeleteMe(ctx, chatID, msg.From)
	case "coach":
		return h.StartCoach(ctx, chatID, msg.From)
	default:
		return h.Notify(ctx, chatID, i18n.T("idle_hint", h.locale(ctx, chatID, msg.From)))
	}
}

// ---------------- /start --------------------
func (h *Handler) HandleStart(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	// create with defaults, existing users keep their settings
	u, err := h.DB.EnsureUser(ctx, &models.User{
		ChatID:      chatID,
		Language:    fromLocale(from),
		Timezone:    h.Cfg.DefaultTZ,
		CheckinTime: h.Cfg.DefaultCheckinTime,
	})
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	h.logger(ctx).Info("user onboarding", "user_id", u.ID, "language", u.Language)

	if err := h.Sessions.Put(ctx, chatID, &models.Conversation{Flow: models.FlowConsent}); err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	locale := i18n.Or(u.Language)
	welcome := i18n.T("start_welcome", locale) + "\n\n" + i18n.T("disclaimer", locale)
	if err := h.Notify(ctx, chatID, welcome); err != nil {
		return err
	}
	return h.send(messages.Consent(chatID, locale))
}

func (h *Handler) HandleLang(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	lang := i18n.Toggle(u.Language)
	if err := h.DB.SetLanguage(ctx, u.ID, lang); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return h.Notify(ctx, chatID, i18n.T("language_set", lang))
}

func (h *Handler) HandleSettings(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	r, err := h.DB.GetReminder(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("get reminder: %w", err)
	}

	locale := i18n.Or(u.Language)
	times := i18n.T("settings_reminders_off", locale)
	if r != nil && r.Enabled && r.Times != "" {
		times = strings.Join(reminders.Split(r.Times), ", ")
	}
	lines := []string{
		i18n.T("settings_title", locale),
		i18n.T("settings_tz", locale) + ": " + u.Timezone,
		i18n.T("settings_checkin", locale) + ": " + u.CheckinTime,
		i18n.T("settings_reminders", locale) + ": " + times,
	}
	return h.Notify(ctx, chatID, strings.Join(lines, "\n"))
}

func (h *Handler) HandleReminders(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	if err := h.Sessions.Put(ctx, chatID, &models.Conversation{Flow: models.FlowReminders}); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return h.Notify(ctx, chatID, i18n.T("reminders_prompt", u.Language))
}

// StartCheckin opens a fresh check-in, discarding any other dialogue in progress.
func (h *Handler) StartCheckin(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireConsent(ctx, chatID, from)
	if u == nil {
		return err
	}
	conv := checkin.Start()
	if err := h.Sessions.Put(ctx, chatID, conv); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	h.logger(ctx).Info("checkin started", "user_id", u.ID)

	locale := i18n.Or(u.Language)
	if err := h.Notify(ctx, chatID, i18n.T("checkin_intro", locale)); err != nil {
		return err
	}
	return h.send(messages.Question(chatID, conv.Step, locale))
}

func (h *Handler) HandleStats(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	recs, err := h.DB.RecentCheckins(ctx, u.ID, statsLimit)
	if err != nil {
		return fmt.Errorf("recent checkins: %w", err)
	}
	locale := i18n.Or(u.Language)
	if len(recs) == 0 {
		return h.Notify(ctx, chatID, i18n.T("stats_title", locale)+"\n"+i18n.T("stats_empty", locale))
	}
	lines := make([]string, 0, len(recs)+1)
	lines = append(lines, i18n.T("stats_title", locale))
	for _, c := range recs {
		lines = append(lines, statsLine(c))
	}
	return h.Notify(ctx, chatID, strings.Join(lines, "\n"))
}

func (h *Handler) HandleExport(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	recs, err := h.DB.Export(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if len(recs) == 0 {
		return h.Notify(ctx, chatID, i18n.T("export_empty", u.Language))
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: exportFileName, Bytes: data})
	return h.send(doc)
}

func (h *Handler) HandleDeleteMe(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	if err := h.DB.DeleteUser(ctx, u.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := h.Sessions.Delete(ctx, chatID); err != nil {
		h.logger(ctx).Warn("session not cleared after delete", "error", err)
	}
	h.logger(ctx).Info("user data deleted", "user_id", u.ID)
	return h.Notify(ctx, chatID, i18n.T("deleted", u.Language))
}
