package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/models"
)

// ErrNoUser is returned when finalization is attempted without a resolved user.
var ErrNoUser = errors.New("finalize: user not onboarded")

// Store is the durable side of finalization.
type Store interface {
	UpsertCheckin(ctx context.Context, c *models.Checkin) error
	SaveAnalysis(ctx context.Context, checkinID int64, summary, recommendations string) error
}

// Analyzer produces the enrichment text. It never fails: unavailability
// must already be degraded to a localized fallback.
type Analyzer interface {
	Analyze(ctx context.Context, prompt, locale string) string
}

// Notifier delivers a text message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Result describes what a finalization did.
type Result struct {
	Checkin  *models.Checkin
	Crisis   bool
	Analysis string
}

type Finalizer struct {
	store    Store
	analyzer Analyzer
	notifier Notifier
	locks    *keyedMutex
	now      func() time.Time
	log      *slog.Logger
}

func NewFinalizer(store Store, analyzer Analyzer, notifier Notifier, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		store:    store,
		analyzer: analyzer,
		notifier: notifier,
		locks:    newKeyedMutex(),
		now:      time.Now,
		log:      logger,
	}
}

// LocalDay returns midnight of now's calendar day in tz as a naive UTC value.
// An unknown tz falls back to UTC and ok is false.
func LocalDay(now time.Time, tz string) (day time.Time, ok bool) {
	loc, err := time.LoadLocation(tz)
	ok = err == nil
	if !ok {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), ok
}

// BuildRecord applies the normalizer to the raw answers.
func BuildRecord(userID int64, day time.Time, answers map[string]*string) *models.Checkin {
	return &models.Checkin{
		UserID:     userID,
		Date:       day,
		Mood:       ParseScore(answers[models.StepMood.Field()]),
		Stress:     ParseScore(answers[models.StepStress.Field()]),
		Energy:     ParseScore(answers[models.StepEnergy.Field()]),
		Emotions:   NormalizeText(answers[models.StepEmotions.Field()]),
		SleepHours: ParseSleepHours(answers[models.StepSleep.Field()]),
		Notes:      NormalizeText(answers[models.StepNotes.Field()]),
	}
}

// BuildPrompt is the user message sent for enrichment.
func BuildPrompt(locale, timezone string, answers map[string]*string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User locale=%s, timezone=%s. Daily check-in raw data: ", locale, timezone)
	for i, step := range Steps {
		if i > 0 {
			b.WriteString(", ")
		}
		v := answers[step.Field()]
		if v == nil {
			fmt.Fprintf(&b, "%s=<skipped>", step.Field())
			continue
		}
		fmt.Fprintf(&b, "%s=%q", step.Field(), *v)
	}
	b.WriteString(".\nProvide: 1) brief empathetic summary; 2) 2–4 actionable, low-risk recommendations " +
		"aligned with CBT/ACT/mindfulness; 3) encourage self-reflection; 4) no diagnoses.")
	return b.String()
}

// Finalize persists the day's check-in for u and runs crisis detection and
// enrichment. Calls for the same user are serialized.
//
// A failed first commit aborts before anything is sent. Transport errors are
// returned as-is. A failed second commit is returned after the analysis has
// been delivered.
func (f *Finalizer) Finalize(ctx context.Context, u *models.User, answers map[string]*string) (*Result, error) {
	if u == nil {
		return nil, ErrNoUser
	}
	unlock := f.locks.Lock(u.ID)
	defer unlock()

	locale := i18n.Or(u.Language)
	log := f.log.With("user_id", u.ID, "chat_id", u.ChatID)

	day, ok := LocalDay(f.now(), u.Timezone)
	if !ok {
		log.Warn("unknown timezone, using UTC", "timezone", u.Timezone)
	}

	rec := BuildRecord(u.ID, day, answers)
	if err := f.store.UpsertCheckin(ctx, rec); err != nil {
		return nil, fmt.Errorf("commit checkin: %w", err)
	}
	log.Info("checkin committed", "checkin_id", rec.ID, "date", day.Format(models.DateLayout))

	res := &Result{Checkin: rec}
	if err := f.notifier.Notify(ctx, u.ChatID, i18n.T("checkin_saved", locale)); err != nil {
		return res, fmt.Errorf("send ack: %w", err)
	}

	if DetectCrisis(RawText(answers)) {
		res.Crisis = true
		log.Warn("crisis keywords detected", "checkin_id", rec.ID)
		for _, key := range []string{"crisis_detected", "crisis_resources"} {
			if err := f.notifier.Notify(ctx, u.ChatID, i18n.T(key, locale)); err != nil {
				return res, fmt.Errorf("send crisis resources: %w", err)
			}
		}
	}

	analysis := strings.TrimSpace(f.analyzer.Analyze(ctx, BuildPrompt(locale, u.Timezone, answers), locale))
	if analysis == "" {
		analysis = i18n.T("llm_unavailable", locale)
	}
	res.Analysis = analysis
	rec.AnalysisSummary = &analysis
	rec.Recommendations = &analysis

	saveErr := f.store.SaveAnalysis(ctx, rec.ID, analysis, analysis)
	if saveErr != nil {
		log.Error("save analysis failed", "checkin_id", rec.ID, "error", saveErr)
		saveErr = fmt.Errorf("commit analysis: %w", saveErr)
	}

	if err := f.notifier.Notify(ctx, u.ChatID, i18n.T("analysis_ready", locale)+"\n\n"+analysis); err != nil {
		return res, errors.Join(saveErr, fmt.Errorf("send analysis: %w", err))
	}
	return res, saveErr
}
