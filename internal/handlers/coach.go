package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/messages"
	"mindcheck-bot/internal/models"
)

// StartCoach opens a coach conversation seeded with the latest check-in.
func (h *Handler) StartCoach(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	u, err := h.requireConsent(ctx, chatID, from)
	if u == nil {
		return err
	}
	last, err := h.DB.LastCheckin(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("last checkin: %w", err)
	}

	locale := i18n.Or(u.Language)
	opening := strings.TrimSpace(coachContext(last) + "\n" + i18n.T("coach_opening", locale))
	conv := &models.Conversation{
		Flow:    models.FlowCoach,
		History: []models.ChatTurn{{Role: "user", Content: opening}},
	}
	if err := h.Sessions.Put(ctx, chatID, conv); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return h.send(messages.Coach(chatID, i18n.T("coach_intro", locale), locale))
}

func (h *Handler) EndCoach(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	if err := h.Sessions.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return h.Notify(ctx, chatID, i18n.T("coach_end", h.locale(ctx, chatID, from)))
}

func (h *Handler) coachPrompt(ctx context.Context, chatID int64, from *tgbotapi.User, kind string) error {
	conv, err := h.Sessions.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if conv == nil || conv.Flow != models.FlowCoach {
		h.logger(ctx).Debug("coach prompt outside coach chat ignored")
		return nil
	}
	locale := h.locale(ctx, chatID, from)
	prompt := i18n.T("coach_prompt_"+kind, locale)
	if prompt == "coach_prompt_"+kind {
		prompt = i18n.T("coach_prompt_default", locale)
	}
	return h.coachTurn(ctx, chatID, from, conv, prompt)
}

// coachTurn appends the user's turn, asks the model and stores its reply.
func (h *Handler) coachTurn(ctx context.Context, chatID int64, from *tgbotapi.User, conv *models.Conversation, text string) error {
	u, err := h.requireConsent(ctx, chatID, from)
	if u == nil {
		return err
	}
	locale := i18n.Or(u.Language)

	conv.History = capHistory(append(conv.History, models.ChatTurn{Role: "user", Content: text}))
	reply := h.Coach.Chat(ctx, conv.History, locale)
	conv.History = capHistory(append(conv.History, models.ChatTurn{Role: "assistant", Content: reply}))

	if err := h.Sessions.Put(ctx, chatID, conv); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return h.send(messages.Coach(chatID, reply, locale))
}

// capHistory keeps the most recent coachHistoryCap turns.
func capHistory(history []models.ChatTurn) []models.ChatTurn {
	if len(history) <= coachHistoryCap {
		return history
	}
	return append([]models.ChatTurn(nil), history[len(history)-coachHistoryCap:]...)
}
