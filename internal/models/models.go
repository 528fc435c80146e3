package models

import "time"

// User is a bot user keyed by telegram chat id.
type User struct {
	ID           int64     `db:"id"            json:"id"`
	ChatID       int64     `db:"chat_id"       json:"chat_id"`
	Language     string    `db:"language_code" json:"language_code"`
	Timezone     string    `db:"timezone"      json:"timezone"`     // IANA, e.g. Europe/Moscow
	CheckinTime  string    `db:"checkin_time"  json:"checkin_time"` // "HH:MM"
	ConsentGiven bool      `db:"consent_given" json:"consent_given"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

// Checkin is one daily self-report. (UserID, Date) is unique.
type Checkin struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	Date            time.Time `db:"date"` // local midnight, stored naive
	Mood            *int      `db:"mood_score"`
	Stress          *int      `db:"stress_score"`
	Energy          *int      `db:"energy_score"`
	Emotions        *string   `db:"emotions"`
	SleepHours      *int      `db:"sleep_hours"`
	Notes           *string   `db:"notes"`
	AnalysisSummary *string   `db:"analysis_summary"`
	Recommendations *string   `db:"recommendations"`
}

// Reminder holds the per-user reminder schedule.
type Reminder struct {
	ID      int64  `db:"id"`
	UserID  int64  `db:"user_id"`
	Enabled bool   `db:"enabled"`
	Times   string `db:"times"` // "09:00,18:00"
}

// ReminderTarget joins a reminder with the owner fields the scheduler needs.
type ReminderTarget struct {
	Reminder
	ChatID   int64
	Language string
	Timezone string
}

// ExportRecord is the wire shape of /export.
type ExportRecord struct {
	Date       string  `json:"date"`
	Mood       *int    `json:"mood"`
	Stress     *int    `json:"stress"`
	Energy     *int    `json:"energy"`
	Emotions   *string `json:"emotions"`
	SleepHours *int    `json:"sleep_hours"`
	Notes      *string `json:"notes"`
	Analysis   *string `json:"analysis"`
	Recs       *string `json:"recs"`
}

// DateLayout is the canonical naive representation of Checkin.Date.
const DateLayout = "2006-01-02T15:04:05"

func (c *Checkin) Export() ExportRecord {
	return ExportRecord{
		Date:       c.Date.Format(DateLayout),
		Mood:       c.Mood,
		Stress:     c.Stress,
		Energy:     c.Energy,
		Emotions:   c.Emotions,
		SleepHours: c.SleepHours,
		Notes:      c.Notes,
		Analysis:   c.AnalysisSummary,
		Recs:       c.Recommendations,
	}
}
