package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mindcheck-bot/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

// ErrUserNotFound is returned for chat ids that never went through /start.
var ErrUserNotFound = errors.New("user not onboarded")

type DB struct{ *sql.DB }

func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err = migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// ---------- users -----------------------------------------------------------

const userColumns = `id, chat_id, language_code, timezone, checkin_time, consent_given, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u       models.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.ChatID, &u.Language, &u.Timezone, &u.CheckinTime, &u.ConsentGiven, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return &u, nil
}

// EnsureUser inserts u if its chat id is unknown and returns the stored row.
// Existing rows are left untouched.
func (d *DB) EnsureUser(ctx context.Context, u *models.User) (*models.User, error) {
	err := withRetry(ctx, "ensure user", func() error {
		_, err := d.ExecContext(ctx, `
        INSERT INTO users (chat_id, language_code, timezone, checkin_time, consent_given, created_at)
        VALUES (?,?,?,?,0,?)
        ON CONFLICT(chat_id) DO NOTHING
    `, u.ChatID, u.Language, u.Timezone, u.CheckinTime, time.Now().Unix())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return d.GetUser(ctx, u.ChatID)
}

func (d *DB) GetUser(ctx context.Context, chatID int64) (*models.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE chat_id=?`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (d *DB) SetConsent(ctx context.Context, userID int64, given bool) error {
	return d.execOne(ctx, "set consent", `UPDATE users SET consent_given=? WHERE id=?`, given, userID)
}

func (d *DB) SetLanguage(ctx context.Context, userID int64, lang string) error {
	return d.execOne(ctx, "set language", `UPDATE users SET language_code=? WHERE id=?`, lang, userID)
}

func (d *DB) execOne(ctx context.Context, name, query string, args ...any) error {
	var res sql.Result
	err := withRetry(ctx, name, func() error {
		var err error
		res, err = d.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ---------- checkins --------------------------------------------------------

const checkinColumns = `id, user_id, date, mood_score, stress_score, energy_score,
        emotions, sleep_hours, notes, analysis_summary, recommendations`

func scanCheckin(row interface{ Scan(...any) error }) (*models.Checkin, error) {
	var (
		c                               models.Checkin
		date                            string
		mood, stress, energy, sleep     sql.NullInt64
		emotions, notes, summary, recos sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &date, &mood, &stress, &energy,
		&emotions, &sleep, &notes, &summary, &recos); err != nil {
		return nil, err
	}
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("checkin %d: bad date %q: %w", c.ID, date, err)
	}
	c.Date = t
	c.Mood = nullInt(mood)
	c.Stress = nullInt(stress)
	c.Energy = nullInt(energy)
	c.SleepHours = nullInt(sleep)
	c.Emotions = nullString(emotions)
	c.Notes = nullString(notes)
	c.AnalysisSummary = nullString(summary)
	c.Recommendations = nullString(recos)
	return &c, nil
}

// UpsertCheckin writes the raw fields of c for (UserID, Date), creating the row
// or reusing the existing one for that day, and stores the row id into c.ID.
func (d *DB) UpsertCheckin(ctx context.Context, c *models.Checkin) error {
	err := withRetry(ctx, "upsert checkin", func() error {
		return d.QueryRowContext(ctx, `
        INSERT INTO checkins (user_id, date, mood_score, stress_score, energy_score, emotions, sleep_hours, notes)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT(user_id, date) DO UPDATE SET
            mood_score=excluded.mood_score,
            stress_score=excluded.stress_score,
            energy_score=excluded.energy_score,
            emotions=excluded.emotions,
            sleep_hours=excluded.sleep_hours,
            notes=excluded.notes
        RETURNING id
    `, c.UserID, c.Date.Format(models.DateLayout), intArg(c.Mood), intArg(c.Stress), intArg(c.Energy),
			stringArg(c.Emotions), intArg(c.SleepHours), stringArg(c.Notes)).Scan(&c.ID)
	})
	if err != nil {
		return fmt.Errorf("upsert checkin: %w", err)
	}
	return nil
}

// SaveAnalysis stores the enrichment text of a committed check-in.
func (d *DB) SaveAnalysis(ctx context.Context, checkinID int64, summary, recommendations string) error {
	err := withRetry(ctx, "save analysis", func() error {
		_, err := d.ExecContext(ctx,
			`UPDATE checkins SET analysis_summary=?, recommendations=? WHERE id=?`,
			summary, recommendations, checkinID)
		return err
	})
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// GetCheckin returns the record for (userID, day) or nil if there is none.
func (d *DB) GetCheckin(ctx context.Context, userID int64, day time.Time) (*models.Checkin, error) {
	c, err := scanCheckin(d.QueryRowContext(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE user_id=? AND date=?`,
		userID, day.Format(models.DateLayout)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkin: %w", err)
	}
	return c, nil
}

// RecentCheckins returns up to limit records, newest first.
func (d *DB) RecentCheckins(ctx context.Context, userID int64, limit int) ([]models.Checkin, error) {
	return d.queryCheckins(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE user_id=? ORDER BY date DESC LIMIT ?`,
		userID, limit)
}

// ListCheckins returns every record of the user, oldest first.
func (d *DB) ListCheckins(ctx context.Context, userID int64) ([]models.Checkin, error) {
	return d.queryCheckins(ctx,
		`SELECT `+checkinColumns+` FROM checkins WHERE user_id=? ORDER BY date ASC`,
		userID)
}

// LastCheckin returns the newest record or nil.
func (d *DB) LastCheckin(ctx context.Context, userID int64) (*models.Checkin, error) {
	rows, err := d.RecentCheckins(ctx, userID, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (d *DB) queryCheckins(ctx context.Context, query string, args ...any) ([]models.Checkin, error) {
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checkins: %w", err)
	}
	defer rows.Close()

	var res []models.Checkin
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	return res, rows.Err()
}

// Export returns the user's records in export shape, ascending by date.
func (d *DB) Export(ctx context.Context, userID int64) ([]models.ExportRecord, error) {
	rows, err := d.ListCheckins(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ExportRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Export())
	}
	return out, nil
}

// ---------- reminders -------------------------------------------------------

// SaveReminders replaces the user's reminder row and timezone in one transaction.
func (d *DB) SaveReminders(ctx context.Context, userID int64, timezone, times string) error {
	return withRetry(ctx, "save reminders", func() error {
		tx, err := d.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
        INSERT INTO reminders (user_id, enabled, times) VALUES (?,1,?)
        ON CONFLICT(user_id) DO UPDATE SET enabled=1, times=excluded.times
    `, userID, times); err != nil {
			return fmt.Errorf("upsert reminder: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET timezone=? WHERE id=?`, timezone, userID); err != nil {
			return fmt.Errorf("update timezone: %w", err)
		}
		return tx.Commit()
	})
}

// GetReminder returns the user's reminder row or nil.
func (d *DB) GetReminder(ctx context.Context, userID int64) (*models.Reminder, error) {
	var r models.Reminder
	err := d.QueryRowContext(ctx,
		`SELECT id, user_id, enabled, times FROM reminders WHERE user_id=?`, userID,
	).Scan(&r.ID, &r.UserID, &r.Enabled, &r.Times)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return &r, nil
}

// ListReminderTargets returns every enabled reminder with its owner's chat settings.
func (d *DB) ListReminderTargets(ctx context.Context) ([]models.ReminderTarget, error) {
	rows, err := d.QueryContext(ctx, `
        SELECT r.id, r.user_id, r.enabled, r.times, u.chat_id, u.language_code, u.timezone
        FROM reminders r JOIN users u ON u.id = r.user_id
        WHERE r.enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var res []models.ReminderTarget
	for rows.Next() {
		var t models.ReminderTarget
		if err := rows.Scan(&t.ID, &t.UserID, &t.Enabled, &t.Times,
			&t.ChatID, &t.Language, &t.Timezone); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ---------- delete ----------------------------------------------------------

// DeleteUser removes the user and every child row.
func (d *DB) DeleteUser(ctx context.Context, userID int64) error {
	return withRetry(ctx, "delete user", func() error {
		tx, err := d.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, tbl := range []string{"checkins", "reminders"} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", tbl), userID); err != nil {
				return fmt.Errorf("delete %s: %w", tbl, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return tx.Commit()
	})
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func stringArg(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
