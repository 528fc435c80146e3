package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"mindcheck-bot/internal/models"
	"mindcheck-bot/internal/utils"
)

const (
	statsLimit       = 7
	statsNotesRunes  = 50
	coachNotesRunes  = 200
	coachHistoryCap  = 20
	exportFileName   = "export.json"
	missingValueMark = "—"
)

var consentWords = map[string]bool{
	"да":       true,
	"согласен": true,
	"согласна": true,
	"yes":      true,
	"agree":    true,
}

func isConsentYes(text string) bool {
	return consentWords[strings.ToLower(strings.TrimSpace(text))]
}

func fmtInt(v *int) string {
	if v == nil {
		return missingValueMark
	}
	return strconv.Itoa(*v)
}

func fmtText(v *string, n int) string {
	if v == nil {
		return ""
	}
	return utils.Truncate(*v, n)
}

// statsLine renders one record of /stats.
func statsLine(c models.Checkin) string {
	return fmt.Sprintf("%s: mood=%s, stress=%s, energy=%s; sleep=%s; notes=%s",
		c.Date.Format("2006-01-02"), fmtInt(c.Mood), fmtInt(c.Stress), fmtInt(c.Energy),
		fmtInt(c.SleepHours), fmtText(c.Notes, statsNotesRunes))
}

// coachContext summarizes the latest check-in for the coach opening turn.
func coachContext(c *models.Checkin) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("Last check-in (%s): mood=%s, stress=%s, energy=%s, sleep=%s, emotions=%s, notes=%s",
		c.Date.Format("2006-01-02"), fmtInt(c.Mood), fmtInt(c.Stress), fmtInt(c.Energy),
		fmtInt(c.SleepHours), fmtText(c.Emotions, coachNotesRunes), fmtText(c.Notes, coachNotesRunes))
}
