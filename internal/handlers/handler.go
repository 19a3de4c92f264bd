package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
	"adgen/internal/history"
	"adgen/internal/pipeline"
	"adgen/internal/session"
	"adgen/internal/usage"
)

const historyShown = 5

// Sender is the part of the Telegram client the handler talks to.
type Sender interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	SendPhoto(chatID int64, image string, caption string) error
	SendTyping(chatID int64)
	AnswerCallback(callbackID, text string, alert bool) error
}

type Generator interface {
	Generate(ctx context.Context, sess *session.Session, form creative.FormData) (pipeline.Result, error)
	Variations(ctx context.Context, sess *session.Session, form creative.FormData, n int) ([]creative.GeneratedText, error)
}

type UsageReporter interface {
	Status(ctx context.Context, userID string) (usage.Status, error)
}

type Options struct {
	Telegram Sender
	Pipeline Generator
	Usage    UsageReporter
	History  history.Store
	Sessions *session.Store
	Logger   *zap.Logger
}

type Handler struct {
	tg       Sender
	pipeline Generator
	usage    UsageReporter
	history  history.Store
	sessions *session.Store
	logger   *zap.Logger
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewStore(session.Options{})
	}

	return &Handler{
		tg:       opts.Telegram,
		pipeline: opts.Pipeline,
		usage:    opts.Usage,
		history:  opts.History,
		sessions: sessions,
		logger:   logger.Named("handlers"),
	}
}

// UserID is the account id of a Telegram user.
func UserID(telegramID int64) string {
	return fmt.Sprintf("tg:%d", telegramID)
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	sess := h.sessions.Get(UserID(msg.From.ID), msg.From.UserName)

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, msg.From.ID, sess, msg)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, msg.From.ID, sess, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, ownerID int64, sess *session.Session, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"📣 AdGen\n\n"+
				"I write ad copy and generate a matching image for your product.\n\n"+
				"Commands:\n"+
				"/new - Create an ad\n"+
				"/variations - Get alternative copy\n"+
				"/usage - Your plan and remaining ads\n"+
				"/history - Your recent ads\n"+
				"/cancel - Stop the current form\n"+
				"/help - Help",
		)
	case "help":
		return h.tg.SendText(chatID,
			"📣 Help\n\n"+
				"/new asks a few questions about your product, then sends the finished ad.\n"+
				"Send - to skip an optional question.\n"+
				"Free accounts get "+fmt.Sprint(usage.DefaultFreeLimit)+" ads.",
		)
	case "new":
		return h.startWizard(chatID, ownerID, sess, false)
	case "variations":
		return h.startWizard(chatID, ownerID, sess, true)
	case "cancel":
		if _, ok := sess.Draft(); !ok {
			return h.tg.SendText(chatID, "Nothing to cancel.")
		}
		sess.ClearDraft()
		return h.tg.SendText(chatID, "✅ Cancelled.")
	case "usage":
		return h.sendUsage(ctx, chatID, sess.UserID)
	case "history":
		return h.sendHistory(ctx, chatID, sess.UserID)
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handleText(ctx context.Context, chatID int64, ownerID int64, sess *session.Session, text string) error {
	if _, ok := sess.Draft(); !ok {
		return h.tg.SendText(chatID, "Send /new to create an ad.")
	}
	return h.advance(ctx, chatID, ownerID, sess, text)
}

func (h *Handler) sendUsage(ctx context.Context, chatID int64, userID string) error {
	st, err := h.usage.Status(ctx, userID)
	if err != nil {
		return h.sendError(chatID, err)
	}
	if st.Plan == usage.PlanPremium {
		return h.tg.SendText(chatID, "⭐ Premium plan: unlimited ads.")
	}
	return h.tg.SendText(chatID, fmt.Sprintf("Free plan: %d of %d ads used, %d left.", st.AdsUsed, st.Limit, st.Remaining))
}

func (h *Handler) sendHistory(ctx context.Context, chatID int64, userID string) error {
	if h.history == nil {
		return h.tg.SendText(chatID, "History is not available.")
	}
	records, err := h.history.List(ctx, userID, historyShown)
	if err != nil {
		return h.sendError(chatID, err)
	}
	if len(records) == 0 {
		return h.tg.SendText(chatID, "No ads yet. Send /new to create one.")
	}

	var b strings.Builder
	b.WriteString("🗂 Recent ads\n")
	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. %s: %s (%d/100, %s)", i+1, r.FormData.ProductName, r.TextContent.Headline, r.Score, r.Timestamp.Format("2006-01-02"))
	}
	return h.tg.SendText(chatID, b.String())
}

func (h *Handler) sendError(chatID int64, err error) error {
	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindValidation, apperrors.KindLimitReached, apperrors.KindBusy, apperrors.KindUnauthenticated:
	default:
		h.logger.Error("request failed", zap.Int64("chat_id", chatID), zap.String("kind", string(kind)), zap.Error(err))
	}
	msg := "❌ " + apperrors.UserMessage(err)
	if kind == apperrors.KindLimitReached {
		msg += "\nUpgrade on the web app to keep generating."
	}
	return h.tg.SendText(chatID, msg)
}

// caption is the copy sent under the image.
func caption(res pipeline.Result) string {
	var b strings.Builder
	b.WriteString(res.Text.Headline)
	if res.Text.AdText != "" {
		b.WriteString("\n\n")
		b.WriteString(res.Text.AdText)
	}
	if res.Text.CTA != "" {
		b.WriteString("\n\n👉 ")
		b.WriteString(res.Text.CTA)
	}
	fmt.Fprintf(&b, "\n\nScore: %d/100", res.Score)
	return b.String()
}

func (h *Handler) sendResult(chatID int64, res pipeline.Result) error {
	text := caption(res)
	if err := h.tg.SendPhoto(chatID, res.ImageURL, text); err != nil {
		h.logger.Warn("send photo failed", zap.Int64("chat_id", chatID), zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return err
		}
		return h.tg.SendText(chatID, text)
	}
	return nil
}

func (h *Handler) sendVariations(chatID int64, out []creative.GeneratedText) error {
	var b strings.Builder
	b.WriteString("✍️ Variations\n")
	for i, v := range out {
		fmt.Fprintf(&b, "\n%d. %s\n%s\n👉 %s\n", i+1, v.Headline, v.AdText, v.CTA)
	}
	return h.tg.SendText(chatID, strings.TrimRight(b.String(), "\n"))
}
