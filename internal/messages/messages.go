// Package messages builds the outbound Telegram messages and inline keyboards
// and parses the callback data they carry.
package messages

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/models"
)

// Callback data prefixes.
const (
	CbScale        = "scale"
	CbSkip         = "skip"
	CbConsent      = "consent"
	CbCoach        = "coach"
	CbCheckinStart = "checkin:start"
	KindCheckin    = "checkin"

	ConsentYes = "yes"
	ConsentNo  = "no"

	CoachPrompt = "prompt"
	CoachEnd    = "end"

	ScaleMin = 1
	ScaleMax = 10
)

// CoachPrompts are the quick-prompt buttons, in display order.
var CoachPrompts = []string{"summary", "plan", "stress"}

// Callback is parsed inline-button data.
type Callback struct {
	Kind  string // CbScale, CbSkip, CbConsent, CbCoach or KindCheckin
	Field string // step field, consent answer or coach action
	Value string // scale value or coach prompt kind
}

// ParseCallback splits callback data. ok is false for anything this bot never sends.
func ParseCallback(data string) (cb Callback, ok bool) {
	if data == CbCheckinStart {
		return Callback{Kind: KindCheckin, Field: "start"}, true
	}
	parts := strings.Split(data, ":")
	switch {
	case parts[0] == CbScale && len(parts) == 3:
		n, err := strconv.Atoi(parts[2])
		if err != nil || n < ScaleMin || n > ScaleMax {
			return Callback{}, false
		}
		return Callback{Kind: CbScale, Field: parts[1], Value: parts[2]}, true
	case parts[0] == CbSkip && len(parts) == 2:
		return Callback{Kind: CbSkip, Field: parts[1]}, true
	case parts[0] == CbConsent && len(parts) == 2 && (parts[1] == ConsentYes || parts[1] == ConsentNo):
		return Callback{Kind: CbConsent, Field: parts[1]}, true
	case parts[0] == CbCoach && len(parts) == 3 && parts[1] == CoachPrompt:
		return Callback{Kind: CbCoach, Field: CoachPrompt, Value: parts[2]}, true
	case parts[0] == CbCoach && len(parts) == 2 && parts[1] == CoachEnd:
		return Callback{Kind: CbCoach, Field: CoachEnd}, true
	}
	return Callback{}, false
}

func skipButton(field, locale string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(i18n.T("btn_skip", locale), CbSkip+":"+field)
}

// ScaleKeyboard is two rows of 1–5 and 6–10 plus a skip row.
func ScaleKeyboard(field, locale string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 3)
	for start := ScaleMin; start <= ScaleMax; start += 5 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 5)
		for n := start; n < start+5 && n <= ScaleMax; n++ {
			v := strconv.Itoa(n)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(v, CbScale+":"+field+":"+v))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(skipButton(field, locale)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func SkipKeyboard(field, locale string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(skipButton(field, locale)))
}

func ConsentKeyboard(locale string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(i18n.T("consent_btn_yes", locale), CbConsent+":"+ConsentYes),
			tgbotapi.NewInlineKeyboardButtonData(i18n.T("consent_btn_no", locale), CbConsent+":"+ConsentNo),
		),
	)
}

func CoachKeyboard(locale string) tgbotapi.InlineKeyboardMarkup {
	prompts := make([]tgbotapi.InlineKeyboardButton, 0, len(CoachPrompts))
	for _, kind := range CoachPrompts {
		prompts = append(prompts, tgbotapi.NewInlineKeyboardButtonData(
			i18n.T("coach_btn_"+kind, locale), CbCoach+":"+CoachPrompt+":"+kind))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		prompts,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(i18n.T("coach_btn_end", locale), CbCoach+":"+CoachEnd),
		),
	)
}

func ReminderKeyboard(locale string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(i18n.T("btn_start_checkin", locale), CbCheckinStart),
		),
	)
}

// RemoveKeyboard strips the inline keyboard from an already-sent message.
func RemoveKeyboard(chatID int64, messageID int) tgbotapi.EditMessageReplyMarkupConfig {
	return tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
}

// Question renders the prompt for a check-in step with its keyboard.
func Question(chatID int64, step models.Step, locale string) tgbotapi.MessageConfig {
	field := step.Field()
	text := i18n.T("ask_"+field, locale)
	var kb tgbotapi.InlineKeyboardMarkup
	switch {
	case step.IsScale():
		text += "\n" + i18n.T("scale_hint", locale)
		kb = ScaleKeyboard(field, locale)
	case step == models.StepEmotions:
		text += "\n" + i18n.T("emotions_hint", locale)
		kb = SkipKeyboard(field, locale)
	case step == models.StepSleep:
		text += "\n" + i18n.T("sleep_hint", locale)
		kb = SkipKeyboard(field, locale)
	default:
		kb = SkipKeyboard(field, locale)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	return msg
}

func Reminder(chatID int64, locale string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, i18n.T("reminder_text", locale))
	msg.ReplyMarkup = ReminderKeyboard(locale)
	return msg
}

func Consent(chatID int64, locale string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, i18n.T("consent_request", locale))
	msg.ReplyMarkup = ConsentKeyboard(locale)
	return msg
}

func Coach(chatID int64, text, locale string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = CoachKeyboard(locale)
	return msg
}
