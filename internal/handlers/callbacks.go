package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcheck-bot/internal/checkin"
	"mindcheck-bot/internal/messages"
)

func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	// always answer callback
	if _, err := h.Bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		h.logger(ctx).Warn("callback ack failed", "error", err)
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return nil
	}

	cb, ok := messages.ParseCallback(cq.Data)
	if !ok {
		h.logger(ctx).Debug("unknown callback ignored", "data", cq.Data)
		return nil
	}

	chatID := cq.Message.Chat.ID
	switch cb.Kind {
	case messages.CbScale:
		v := cb.Value
		return h.handleAnswer(ctx, cq, cb.Field, &v)
	case messages.CbSkip:
		return h.handleAnswer(ctx, cq, cb.Field, nil)
	case messages.CbConsent:
		h.removeKeyboard(ctx, cq)
		return h.setConsent(ctx, chatID, cq.From, cb.Field == messages.ConsentYes)
	case messages.CbCoach:
		if cb.Field == messages.CoachEnd {
			return h.EndCoach(ctx, chatID, cq.From)
		}
		return h.coachPrompt(ctx, chatID, cq.From, cb.Value)
	case messages.KindCheckin:
		h.removeKeyboard(ctx, cq)
		return h.StartCheckin(ctx, chatID, cq.From)
	}
	return nil
}

// handleAnswer applies a scale or skip button. Buttons from an earlier step or
// an abandoned dialogue are acknowledged above and otherwise ignored.
func (h *Handler) handleAnswer(ctx context.Context, cq *tgbotapi.CallbackQuery, field string, value *string) error {
	chatID := cq.Message.Chat.ID
	conv, err := h.Sessions.Get(ctx, chatID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	done, err := checkin.Apply(conv, field, value)
	if isStale(err) {
		h.logger(ctx).Debug("stale answer ignored", "field", field, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply answer: %w", err)
	}

	u, err := h.requireUser(ctx, chatID, cq.From)
	if u == nil {
		return err
	}
	h.removeKeyboard(ctx, cq)
	return h.advance(ctx, u, conv, done)
}

func (h *Handler) removeKeyboard(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := h.Bot.Request(messages.RemoveKeyboard(cq.Message.Chat.ID, cq.Message.MessageID)); err != nil {
		h.logger(ctx).Debug("remove keyboard failed", "error", err)
	}
}
