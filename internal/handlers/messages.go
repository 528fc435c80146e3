package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcheck-bot/internal/checkin"
	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/messages"
	"mindcheck-bot/internal/models"
	"mindcheck-bot/internal/reminders"
)

// HandleText routes free text by the chat's current flow.
func (h *Handler) HandleText(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	conv, err := h.Sessions.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if conv == nil {
		return h.Notify(ctx, chatID, i18n.T("idle_hint", h.locale(ctx, chatID, msg.From)))
	}

	switch conv.Flow {
	case models.FlowConsent:
		return h.setConsent(ctx, chatID, msg.From, isConsentYes(msg.Text))
	case models.FlowReminders:
		return h.saveReminders(ctx, chatID, msg.From, msg.Text)
	case models.FlowCheckin:
		u, err := h.requireUser(ctx, chatID, msg.From)
		if u == nil {
			return err
		}
		done, err := checkin.ApplyText(conv, msg.Text)
		if err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}
		return h.advance(ctx, u, conv, done)
	case models.FlowCoach:
		return h.coachTurn(ctx, chatID, msg.From, conv, msg.Text)
	default:
		return h.Notify(ctx, chatID, i18n.T("idle_hint", h.locale(ctx, chatID, msg.From)))
	}
}

// advance persists the dialogue after an accepted answer. On completion the
// session is cleared first and the answers are handed to the finalizer.
func (h *Handler) advance(ctx context.Context, u *models.User, conv *models.Conversation, done bool) error {
	if !done {
		if err := h.Sessions.Put(ctx, u.ChatID, conv); err != nil {
			return fmt.Errorf("put session: %w", err)
		}
		return h.send(messages.Question(u.ChatID, conv.Step, i18n.Or(u.Language)))
	}

	if err := h.Sessions.Delete(ctx, u.ChatID); err != nil {
		h.logger(ctx).Warn("session not cleared before finalize", "error", err)
	}
	res, err := h.Finalizer.Finalize(ctx, u, conv.Answers)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	h.logger(ctx).Info("checkin finalized", "checkin_id", res.Checkin.ID, "crisis", res.Crisis)
	return nil
}

func (h *Handler) setConsent(ctx context.Context, chatID int64, from *tgbotapi.User, given bool) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	if err := h.Sessions.Delete(ctx, chatID); err != nil {
		h.logger(ctx).Warn("session not cleared after consent", "error", err)
	}
	// A refusal only ends the prompt. Consent once given is never revoked here.
	if !given {
		return h.Notify(ctx, chatID, i18n.T("consent_no", u.Language))
	}
	if err := h.DB.SetConsent(ctx, u.ID, true); err != nil {
		return fmt.Errorf("set consent: %w", err)
	}
	h.logger(ctx).Info("consent recorded", "user_id", u.ID)
	return h.Notify(ctx, chatID, i18n.T("consent_yes", u.Language))
}

func (h *Handler) saveReminders(ctx context.Context, chatID int64, from *tgbotapi.User, text string) error {
	u, err := h.requireUser(ctx, chatID, from)
	if u == nil {
		return err
	}
	settings := reminders.Parse(text, u.Timezone, u.CheckinTime)
	if err := h.DB.SaveReminders(ctx, u.ID, settings.Timezone, settings.Joined()); err != nil {
		return fmt.Errorf("save reminders: %w", err)
	}
	if err := h.Sessions.Delete(ctx, chatID); err != nil {
		h.logger(ctx).Warn("session not cleared after reminders", "error", err)
	}
	h.logger(ctx).Info("reminders saved", "user_id", u.ID, "times", settings.Joined(), "timezone", settings.Timezone)

	reply := fmt.Sprintf("%s\n%s (%s)", i18n.T("reminder_set", u.Language),
		strings.Join(settings.Times, ", "), settings.Timezone)
	return h.Notify(ctx, chatID, reply)
}

// SendReminder delivers a scheduled check-in nudge.
func (h *Handler) SendReminder(_ context.Context, t models.ReminderTarget) error {
	return h.send(messages.Reminder(t.ChatID, i18n.Or(t.Language)))
}

func isStale(err error) bool {
	return errors.Is(err, checkin.ErrOutOfOrder) || errors.Is(err, checkin.ErrNoCheckin)
}
