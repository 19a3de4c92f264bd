package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
	"adgen/internal/history"
	"adgen/internal/pipeline"
	"adgen/internal/session"
	"adgen/internal/usage"
)

const (
	chatID  = int64(100)
	ownerID = int64(42)
)

type sent struct {
	text     string
	photo    string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

type recorder struct {
	messages []sent
	answers  []string
	photoErr error
}

func (r *recorder) SendText(_ int64, text string) error {
	r.messages = append(r.messages, sent{text: text})
	return nil
}

func (r *recorder) SendTextWithKeyboard(_ int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	r.messages = append(r.messages, sent{text: text, keyboard: &kb})
	return len(r.messages), nil
}

func (r *recorder) SendPhoto(_ int64, image string, caption string) error {
	if r.photoErr != nil {
		return r.photoErr
	}
	r.messages = append(r.messages, sent{text: caption, photo: image})
	return nil
}

func (r *recorder) SendTyping(int64) {}

func (r *recorder) AnswerCallback(_ string, text string, _ bool) error {
	r.answers = append(r.answers, text)
	return nil
}

func (r *recorder) last() sent {
	return r.messages[len(r.messages)-1]
}

type stubText struct{ forms []creative.FormData }

func (s *stubText) GenerateText(_ context.Context, f creative.FormData) (creative.GeneratedText, error) {
	s.forms = append(s.forms, f)
	return creative.GeneratedText{Headline: "Hot pizza in thirty minutes flat", AdText: "Stone baked. Delivered hot.", CTA: "Order Now"}, nil
}

func (s *stubText) GenerateVariations(_ context.Context, f creative.FormData, n int) ([]creative.GeneratedText, error) {
	out := make([]creative.GeneratedText, n)
	for i := range out {
		out[i], _ = s.GenerateText(context.Background(), f)
	}
	return out, nil
}

type stubImage struct{}

func (stubImage) GenerateImage(context.Context, creative.FormData) (string, error) {
	return "data:image/png;base64,aGVsbG8=", nil
}

type env struct {
	h    *Handler
	tg   *recorder
	text *stubText
	gate *usage.Gate
	hist *history.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	tg := &recorder{}
	text := &stubText{}
	gate := usage.NewGate(usage.Options{Logger: logger})
	hist := history.NewMemoryStore(50)
	p := pipeline.New(pipeline.Options{Text: text, Image: stubImage{}, Gate: gate, History: hist, Logger: logger})
	h := New(Options{
		Telegram: tg,
		Pipeline: p,
		Usage:    gate,
		History:  hist,
		Sessions: session.NewStore(session.Options{}),
		Logger:   logger,
	})
	return &env{h: h, tg: tg, text: text, gate: gate, hist: hist}
}

func message(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: ownerID, UserName: "pizzeria"},
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callback(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func (e *env) send(t *testing.T, u tgbotapi.Update) {
	t.Helper()
	require.NoError(t, e.h.HandleUpdate(context.Background(), u))
}

func (e *env) fillRequired(t *testing.T) {
	t.Helper()
	e.send(t, message("/new"))
	e.send(t, message("Mario's Pizza"))
	e.send(t, message("Wood fired pizza with fresh mozzarella"))
	e.send(t, message("students nearby"))
	e.send(t, message("restaurant"))
}

func TestWizardCollectsFormAndSendsAd(t *testing.T) {
	e := newEnv(t)

	e.fillRequired(t)
	e.send(t, message("2 for 1 on Tuesdays"))
	e.send(t, message("-"))
	e.send(t, callback(ownerID, "ad:42:6:pick:playful"))
	e.send(t, callback(ownerID, "ad:42:7:skip"))

	require.Len(t, e.text.forms, 1)
	form := e.text.forms[0]
	assert.Equal(t, "Mario's Pizza", form.ProductName)
	assert.Equal(t, "restaurant", form.BusinessType)
	assert.Equal(t, "2 for 1 on Tuesdays", form.SpecialOffer)
	assert.Equal(t, creative.DefaultLanguage, form.Language)
	assert.Equal(t, "playful", form.Tone)
	assert.Equal(t, creative.DefaultFormat, form.AdFormat)

	last := e.tg.last()
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", last.photo)
	assert.Contains(t, last.text, "Hot pizza in thirty minutes flat")
	assert.Contains(t, last.text, "Score: ")
	assert.Equal(t, []string{"OK", "OK"}, e.tg.answers)

	list, err := e.hist.List(context.Background(), "tg:42", 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestWizardRepeatsRequiredQuestion(t *testing.T) {
	e := newEnv(t)
	e.send(t, message("/new"))

	e.send(t, message("-"))

	assert.True(t, strings.HasPrefix(e.tg.last().text, "This one is required."))
	sess := e.h.sessions.Get("tg:42", "")
	d, ok := sess.Draft()
	require.True(t, ok)
	assert.Zero(t, d.Step)
}

func TestOptionalStepsOfferSkip(t *testing.T) {
	e := newEnv(t)
	e.fillRequired(t)

	kb := e.tg.last().keyboard
	require.NotNil(t, kb)
	lastRow := kb.InlineKeyboard[len(kb.InlineKeyboard)-1]
	require.Len(t, lastRow, 1)
	assert.Equal(t, "Skip", lastRow[0].Text)
	require.NotNil(t, lastRow[0].CallbackData)
	assert.Equal(t, "ad:42:4:skip", *lastRow[0].CallbackData)
}

func TestCallbackFromAnotherUserIsRejected(t *testing.T) {
	e := newEnv(t)
	e.fillRequired(t)
	before := len(e.tg.messages)

	e.send(t, callback(7, "ad:42:4:skip"))

	assert.Equal(t, []string{"This menu is not for you."}, e.tg.answers)
	assert.Len(t, e.tg.messages, before)
}

func TestStaleButtonsAreIgnored(t *testing.T) {
	e := newEnv(t)
	e.fillRequired(t)

	e.send(t, callback(ownerID, "ad:42:3:pick:fashion"))
	e.send(t, message("2 for 1 on Tuesdays"))
	e.send(t, message("-"))
	e.send(t, callback(ownerID, "ad:42:6:pick:playful"))
	e.send(t, callback(ownerID, "ad:42:6:pick:urgent"))
	e.send(t, callback(ownerID, "ad:42:7:skip"))

	require.Len(t, e.text.forms, 1)
	form := e.text.forms[0]
	assert.Equal(t, "restaurant", form.BusinessType)
	assert.Equal(t, "2 for 1 on Tuesdays", form.SpecialOffer)
	assert.Equal(t, creative.DefaultLanguage, form.Language)
	assert.Equal(t, "playful", form.Tone)
	assert.Equal(t, creative.DefaultFormat, form.AdFormat)
	assert.Equal(t, []string{
		"This question was already answered.",
		"OK",
		"This question was already answered.",
		"OK",
	}, e.tg.answers)
}

func TestCancelDropsDraft(t *testing.T) {
	e := newEnv(t)
	e.send(t, message("/new"))
	e.send(t, message("/cancel"))

	assert.Equal(t, "✅ Cancelled.", e.tg.last().text)

	e.send(t, message("Mario's Pizza"))
	assert.Equal(t, "Send /new to create an ad.", e.tg.last().text)
}

func TestVariationsWizard(t *testing.T) {
	e := newEnv(t)
	e.send(t, message("/variations"))
	for _, in := range []string{"Mario's Pizza", "Wood fired pizza", "students", "restaurant", "-", "-", "-", "-"} {
		e.send(t, message(in))
	}

	out := e.tg.last().text
	assert.True(t, strings.HasPrefix(out, "✍️ Variations"))
	assert.Equal(t, 3, strings.Count(out, "Hot pizza in thirty minutes flat"))

	st, err := e.gate.Status(context.Background(), "tg:42")
	require.NoError(t, err)
	assert.Zero(t, st.AdsUsed)
}

func TestLimitReachedMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for i := 0; i < usage.DefaultFreeLimit; i++ {
		_, err := e.gate.RecordGeneration(ctx, "tg:42")
		require.NoError(t, err)
	}

	e.fillRequired(t)
	for i := 0; i < 4; i++ {
		e.send(t, message("-"))
	}

	assert.Empty(t, e.text.forms)
	assert.Contains(t, e.tg.last().text, apperrors.UserMessage(apperrors.LimitReached(4, 4)))
}

func TestUsageAndHistoryCommands(t *testing.T) {
	e := newEnv(t)

	e.send(t, message("/usage"))
	assert.Equal(t, "Free plan: 0 of 4 ads used, 4 left.", e.tg.last().text)

	e.send(t, message("/history"))
	assert.Equal(t, "No ads yet. Send /new to create one.", e.tg.last().text)

	e.fillRequired(t)
	for i := 0; i < 4; i++ {
		e.send(t, message("-"))
	}

	e.send(t, message("/history"))
	assert.Contains(t, e.tg.last().text, "1. Mario's Pizza: Hot pizza in thirty minutes flat")

	_, err := e.gate.Upgrade(context.Background(), "tg:42")
	require.NoError(t, err)
	e.send(t, message("/usage"))
	assert.Equal(t, "⭐ Premium plan: unlimited ads.", e.tg.last().text)
}

func TestPhotoFailureFallsBackToText(t *testing.T) {
	e := newEnv(t)
	e.tg.photoErr = errors.New("bad request")

	e.fillRequired(t)
	for i := 0; i < 4; i++ {
		e.send(t, message("-"))
	}

	last := e.tg.last()
	assert.Empty(t, last.photo)
	assert.Contains(t, last.text, "Hot pizza in thirty minutes flat")
}

func TestUnknownCommandAndStrayText(t *testing.T) {
	e := newEnv(t)

	e.send(t, message("/dance"))
	assert.Equal(t, "❌ Unknown command. Use /help.", e.tg.last().text)

	e.send(t, message("hello"))
	assert.Equal(t, "Send /new to create an ad.", e.tg.last().text)

	require.NoError(t, e.h.HandleUpdate(context.Background(), tgbotapi.Update{}))
}

func TestUserID(t *testing.T) {
	assert.Equal(t, "tg:42", UserID(42))
}
