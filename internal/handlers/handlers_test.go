package handlers

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcheck-bot/internal/config"
	"mindcheck-bot/internal/i18n"
	"mindcheck-bot/internal/models"
	"mindcheck-bot/internal/session"
	"mindcheck-bot/internal/storage"
)

const testChat int64 = 4242

type fakeBot struct {
	mu       sync.Mutex
	nextID   int
	texts    []string
	markups  []any
	docs     []tgbotapi.FileBytes
	requests []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		b.texts = append(b.texts, m.Text)
		b.markups = append(b.markups, m.ReplyMarkup)
	case tgbotapi.DocumentConfig:
		if fb, ok := m.File.(tgbotapi.FileBytes); ok {
			b.docs = append(b.docs, fb)
		}
	}
	return tgbotapi.Message{MessageID: b.nextID}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

func (b *fakeBot) last() string {
	texts := b.sent()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (b *fakeBot) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.texts, b.markups, b.docs, b.requests = nil, nil, nil, nil
}

type fakeLLM struct {
	mu       sync.Mutex
	analysis string
	chats    [][]models.ChatTurn
}

func (f *fakeLLM) Analyze(context.Context, string, string) string { return f.analysis }

func (f *fakeLLM) Chat(_ context.Context, history []models.ChatTurn, _ string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, append([]models.ChatTurn(nil), history...))
	return "coach reply"
}

type env struct {
	h   *Handler
	bot *fakeBot
	llm *fakeLLM
	db  *storage.DB
	ss  *session.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	bot := &fakeBot{}
	llm := &fakeLLM{analysis: "You did well today."}
	ss := session.NewMemoryStore(time.Hour)
	cfg := config.Config{DefaultTZ: "UTC", DefaultCheckinTime: "18:00"}
	return &env{h: NewHandler(bot, db, ss, llm, llm, cfg, nil), bot: bot, llm: llm, db: db, ss: ss}
}

var testUser = &tgbotapi.User{ID: 1, LanguageCode: "en"}

func (e *env) command(cmd string) {
	text := "/" + cmd
	e.h.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: testChat},
		From:     testUser,
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}})
}

func (e *env) text(text string) {
	e.h.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: testChat},
		From: testUser,
		Text: text,
	}})
}

func (e *env) press(data string) {
	e.h.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    testUser,
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: testChat}},
	}})
}

func (e *env) onboard(t *testing.T) *models.User {
	t.Helper()
	e.command("start")
	e.press("consent:yes")
	u, err := e.db.GetUser(context.Background(), testChat)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.ConsentGiven || u.Language != "en" || u.Timezone != "UTC" {
		t.Fatalf("user after onboarding = %+v", u)
	}
	e.bot.reset()
	return u
}

func (e *env) conversation(t *testing.T) *models.Conversation {
	t.Helper()
	conv, err := e.ss.Get(context.Background(), testChat)
	if err != nil {
		t.Fatalf("session Get: %v", err)
	}
	return conv
}

func TestStartSendsConsent(t *testing.T) {
	e := newEnv(t)
	e.command("start")

	texts := e.bot.sent()
	if len(texts) != 2 {
		t.Fatalf("sent %q", texts)
	}
	if !strings.Contains(texts[0], i18n.T("disclaimer", "en")) {
		t.Fatalf("welcome = %q", texts[0])
	}
	kb, ok := e.bot.markups[1].(tgbotapi.InlineKeyboardMarkup)
	if texts[1] != i18n.T("consent_request", "en") || !ok || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("consent message = %q %#v", texts[1], e.bot.markups[1])
	}
	if conv := e.conversation(t); conv == nil || conv.Flow != models.FlowConsent {
		t.Fatalf("conversation = %+v", conv)
	}
}

func TestConsentByText(t *testing.T) {
	e := newEnv(t)
	e.command("start")
	e.text("Да")

	u, _ := e.db.GetUser(context.Background(), testChat)
	if !u.ConsentGiven {
		t.Fatal("consent not stored")
	}
	if e.bot.last() != i18n.T("consent_yes", "en") {
		t.Fatalf("reply = %q", e.bot.last())
	}
	if e.conversation(t) != nil {
		t.Fatal("consent flow not cleared")
	}
}

func TestCommandsRequireUser(t *testing.T) {
	for _, cmd := range []string{"checkin", "stats", "export", "settings", "reminders", "lang", "coach", "delete_me"} {
		e := newEnv(t)
		e.command(cmd)
		if got := e.bot.last(); got != i18n.T("not_onboarded", "en") {
			t.Errorf("/%s reply = %q", cmd, got)
		}
	}
}

func TestRestartKeepsGivenConsent(t *testing.T) {
	e := newEnv(t)
	e.onboard(t)

	e.command("start")
	e.text("hello")
	if e.bot.last() != i18n.T("consent_no", "en") {
		t.Fatalf("reply = %q", e.bot.last())
	}
	u, _ := e.db.GetUser(context.Background(), testChat)
	if !u.ConsentGiven {
		t.Fatal("consent revoked by a non-agreeing reply")
	}

	e.command("start")
	e.press("consent:no")
	u, _ = e.db.GetUser(context.Background(), testChat)
	if !u.ConsentGiven {
		t.Fatal("consent revoked by the decline button")
	}

	e.command("checkin")
	if conv := e.conversation(t); conv == nil || conv.Flow != models.FlowCheckin {
		t.Fatalf("check-in did not start after re-onboarding: %q", e.bot.last())
	}
}

func TestCheckinRequiresConsent(t *testing.T) {
	e := newEnv(t)
	e.command("start")
	e.press("consent:no")
	e.command("checkin")
	if got := e.bot.last(); got != i18n.T("consent_required", "en") {
		t.Fatalf("reply = %q", got)
	}
	if e.conversation(t) != nil {
		t.Fatal("check-in must not start without consent")
	}
}

func TestCheckinDialogue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.onboard(t)

	e.command("checkin")
	if conv := e.conversation(t); conv == nil || conv.Step != models.StepMood {
		t.Fatalf("conversation = %+v", conv)
	}

	e.press("scale:mood:7")
	e.press("skip:stress")
	e.text("5")
	e.text("calm, tired")
	e.text("7,5")
	if conv := e.conversation(t); conv == nil || conv.Step != models.StepNotes {
		t.Fatalf("conversation before notes = %+v", conv)
	}
	e.press("skip:notes")

	if e.conversation(t) != nil {
		t.Fatal("session not cleared after finalize")
	}
	recs, err := e.db.ListCheckins(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListCheckins: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	c := recs[0]
	if *c.Mood != 7 || c.Stress != nil || *c.Energy != 5 || *c.Emotions != "calm, tired" || *c.SleepHours != 7 || c.Notes != nil {
		t.Fatalf("record = %+v", c)
	}
	if c.AnalysisSummary == nil || *c.AnalysisSummary != "You did well today." {
		t.Fatalf("analysis = %v", c.AnalysisSummary)
	}

	texts := e.bot.sent()
	if !contains(texts, i18n.T("checkin_saved", "en")) {
		t.Fatalf("no ack in %q", texts)
	}
	if !strings.HasSuffix(e.bot.last(), "You did well today.") {
		t.Fatalf("last message = %q", e.bot.last())
	}

	e.command("checkin")
	e.press("scale:mood:2")
	for _, s := range []string{"stress", "energy", "emotions", "sleep", "notes"} {
		e.press("skip:" + s)
	}
	recs, _ = e.db.ListCheckins(ctx, u.ID)
	if len(recs) != 1 || *recs[0].Mood != 2 {
		t.Fatalf("second check-in same day must reuse the record: %+v", recs)
	}
}

func TestOutOfOrderCallbackIgnored(t *testing.T) {
	e := newEnv(t)
	e.onboard(t)
	e.command("checkin")
	e.bot.reset()

	e.press("scale:stress:4")

	if len(e.bot.sent()) != 0 {
		t.Fatalf("unexpected replies %q", e.bot.sent())
	}
	if len(e.bot.requests) != 1 {
		t.Fatalf("requests = %d, want only the callback ack", len(e.bot.requests))
	}
	if _, ok := e.bot.requests[0].(tgbotapi.CallbackConfig); !ok {
		t.Fatalf("request = %T", e.bot.requests[0])
	}
	conv := e.conversation(t)
	if conv.Step != models.StepMood || len(conv.Answers) != 0 {
		t.Fatalf("conversation changed: %+v", conv)
	}
}

func TestCrisisNotesSendResources(t *testing.T) {
	e := newEnv(t)
	e.onboard(t)
	e.command("checkin")
	for _, s := range []string{"mood", "stress", "energy", "emotions", "sleep"} {
		e.press("skip:" + s)
	}
	e.text("I want to kill myself")

	if !contains(e.bot.sent(), i18n.T("crisis_resources", "en")) {
		t.Fatalf("crisis resources not sent: %q", e.bot.sent())
	}
}

func TestCommandMidDialogueReplacesSession(t *testing.T) {
	e := newEnv(t)
	e.onboard(t)
	e.command("checkin")
	e.press("scale:mood:3")

	e.command("stats")
	if conv := e.conversation(t); conv == nil || conv.Step != models.StepStress {
		t.Fatalf("/stats must leave the check-in alone: %+v", conv)
	}

	e.command("reminders")
	if conv := e.conversation(t); conv == nil || conv.Flow != models.FlowReminders {
		t.Fatalf("/reminders must replace the session: %+v", conv)
	}
}

func TestRemindersAndSettings(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.onboard(t)

	e.command("reminders")
	e.text("21:30, 9:00 Asia/Tokyo")

	r, err := e.db.GetReminder(ctx, u.ID)
	if err != nil || r == nil {
		t.Fatalf("GetReminder: %v %v", r, err)
	}
	if r.Times != "21:30,09:00" || !r.Enabled {
		t.Fatalf("reminder = %+v", r)
	}
	if e.conversation(t) != nil {
		t.Fatal("reminders flow not cleared")
	}

	e.command("settings")
	got := e.bot.last()
	if !strings.Contains(got, "Asia/Tokyo") || !strings.Contains(got, "21:30, 09:00") {
		t.Fatalf("settings = %q", got)
	}
}

func TestStatsExportDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.onboard(t)

	e.command("stats")
	if !strings.Contains(e.bot.last(), i18n.T("stats_empty", "en")) {
		t.Fatalf("stats = %q", e.bot.last())
	}
	e.command("export")
	if e.bot.last() != i18n.T("export_empty", "en") {
		t.Fatalf("export = %q", e.bot.last())
	}

	e.command("checkin")
	e.press("scale:mood:8")
	for _, s := range []string{"stress", "energy", "emotions", "sleep"} {
		e.press("skip:" + s)
	}
	e.text(strings.Repeat("n", 80))

	e.command("stats")
	stats := e.bot.last()
	if !strings.Contains(stats, "mood=8") || strings.Contains(stats, strings.Repeat("n", 51)) {
		t.Fatalf("stats = %q", stats)
	}

	e.command("export")
	if len(e.bot.docs) != 1 || e.bot.docs[0].Name != "export.json" {
		t.Fatalf("docs = %+v", e.bot.docs)
	}
	if !strings.Contains(string(e.bot.docs[0].Bytes), `"mood": 8`) {
		t.Fatalf("export body = %s", e.bot.docs[0].Bytes)
	}

	e.command("delete_me")
	if e.bot.last() != i18n.T("deleted", "en") {
		t.Fatalf("delete reply = %q", e.bot.last())
	}
	if _, err := e.db.GetUser(ctx, testChat); err == nil {
		t.Fatal("user survived delete")
	}
	if recs, _ := e.db.ListCheckins(ctx, u.ID); len(recs) != 0 {
		t.Fatalf("checkins survived delete: %d", len(recs))
	}
}

func TestLangToggle(t *testing.T) {
	e := newEnv(t)
	e.onboard(t)
	e.command("lang")
	if e.bot.last() != i18n.T("language_set", "ru") {
		t.Fatalf("reply = %q", e.bot.last())
	}
	u, _ := e.db.GetUser(context.Background(), testChat)
	if u.Language != "ru" {
		t.Fatalf("language = %q", u.Language)
	}
}

func TestCoachChat(t *testing.T) {
	e := newEnv(t)
	e.onboard(t)

	e.command("coach")
	if e.bot.last() != i18n.T("coach_intro", "en") {
		t.Fatalf("intro = %q", e.bot.last())
	}
	e.press("coach:prompt:plan")
	e.text("thanks")
	if e.bot.last() != "coach reply" {
		t.Fatalf("reply = %q", e.bot.last())
	}

	if len(e.llm.chats) != 2 {
		t.Fatalf("chat calls = %d", len(e.llm.chats))
	}
	first := e.llm.chats[0]
	if first[len(first)-1].Content != i18n.T("coach_prompt_plan", "en") {
		t.Fatalf("quick prompt turn = %+v", first[len(first)-1])
	}
	if n := len(e.conversation(t).History); n != 5 {
		t.Fatalf("history = %d turns, want opening + 2 exchanges", n)
	}

	for i := 0; i < 15; i++ {
		e.text("more")
	}
	if n := len(e.conversation(t).History); n != coachHistoryCap {
		t.Fatalf("history = %d, want capped at %d", n, coachHistoryCap)
	}

	e.press("coach:end")
	if e.conversation(t) != nil || e.bot.last() != i18n.T("coach_end", "en") {
		t.Fatalf("coach not ended: %q", e.bot.last())
	}
}

func TestIdleText(t *testing.T) {
	e := newEnv(t)
	e.onboard(t)
	e.text("hello?")
	if e.bot.last() != i18n.T("idle_hint", "en") {
		t.Fatalf("reply = %q", e.bot.last())
	}
}

func TestSendReminder(t *testing.T) {
	e := newEnv(t)
	err := e.h.SendReminder(context.Background(), models.ReminderTarget{ChatID: testChat, Language: "en"})
	if err != nil {
		t.Fatalf("SendReminder: %v", err)
	}
	kb, ok := e.bot.markups[0].(tgbotapi.InlineKeyboardMarkup)
	if e.bot.last() != i18n.T("reminder_text", "en") || !ok || *kb.InlineKeyboard[0][0].CallbackData != "checkin:start" {
		t.Fatalf("reminder = %q %#v", e.bot.last(), e.bot.markups)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
