package handlers

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"adgen/internal/creative"
	"adgen/internal/session"
)

const (
	callbackPrefix = "ad"
	skipInput      = "-"
)

type step struct {
	prompt   string
	required bool
	choices  []string
	set      func(f *creative.FormData, v string)
}

var steps = []step{
	{
		prompt:   "What is the product or business called?",
		required: true,
		set:      func(f *creative.FormData, v string) { f.ProductName = v },
	},
	{
		prompt:   "Describe it in a sentence or two.",
		required: true,
		set:      func(f *creative.FormData, v string) { f.ProductDescription = v },
	},
	{
		prompt:   "Who is the ad for?",
		required: true,
		set:      func(f *creative.FormData, v string) { f.TargetAudience = v },
	},
	{
		prompt:   "What kind of business is it?",
		required: true,
		choices:  []string{"restaurant", "fashion", "beauty", "fitness", "tech", "real estate"},
		set:      func(f *creative.FormData, v string) { f.BusinessType = v },
	},
	{
		prompt: "Any special offer? Send - to skip.",
		set:    func(f *creative.FormData, v string) { f.SpecialOffer = v },
	},
	{
		prompt:  "Which language should the ad use? Send - for English.",
		choices: []string{"English", "Hindi", "Spanish"},
		set:     func(f *creative.FormData, v string) { f.Language = v },
	},
	{
		prompt:  "Pick a tone, or send your own.",
		choices: []string{"professional", "friendly", "playful", "luxurious", "urgent"},
		set:     func(f *creative.FormData, v string) { f.Tone = v },
	},
	{
		prompt:  "Which format? Send - for a social media post.",
		choices: []string{"social media post", "banner", "story", "poster"},
		set:     func(f *creative.FormData, v string) { f.AdFormat = v },
	},
}

func (h *Handler) startWizard(chatID int64, ownerID int64, sess *session.Session, variations bool) error {
	if sess.Busy() {
		return h.tg.SendText(chatID, "⏳ Your previous ad is still being generated.")
	}
	sess.SetDraft(session.Draft{Variations: variations})
	return h.ask(chatID, ownerID, 0)
}

func (h *Handler) ask(chatID int64, ownerID int64, idx int) error {
	st := steps[idx]
	text := st.prompt + " (" + strconv.Itoa(idx+1) + "/" + strconv.Itoa(len(steps)) + ")"
	if len(st.choices) == 0 && st.required {
		return h.tg.SendText(chatID, text)
	}
	_, err := h.tg.SendTextWithKeyboard(chatID, text, stepKeyboard(ownerID, idx))
	return err
}

// advance records input for the current step and either asks the next
// question or runs the pipeline on the completed form.
func (h *Handler) advance(ctx context.Context, chatID int64, ownerID int64, sess *session.Session, input string) error {
	d, ok := sess.Draft()
	if !ok || d.Step >= len(steps) {
		return h.tg.SendText(chatID, "Send /new to create an ad.")
	}

	st := steps[d.Step]
	v := strings.TrimSpace(input)
	if v == skipInput {
		v = ""
	}
	if v == "" && st.required {
		return h.tg.SendText(chatID, "This one is required. "+st.prompt)
	}
	st.set(&d.Form, v)
	d.Step++

	if d.Step < len(steps) {
		sess.SetDraft(d)
		return h.ask(chatID, ownerID, d.Step)
	}

	sess.ClearDraft()
	return h.complete(ctx, chatID, sess, d)
}

func (h *Handler) complete(ctx context.Context, chatID int64, sess *session.Session, d session.Draft) error {
	h.tg.SendTyping(chatID)

	if d.Variations {
		_ = h.tg.SendText(chatID, "✍️ Writing variations...")
		out, err := h.pipeline.Variations(ctx, sess, d.Form, 0)
		if err != nil {
			return h.sendError(chatID, err)
		}
		return h.sendVariations(chatID, out)
	}

	_ = h.tg.SendText(chatID, "🎨 Generating your ad, this can take a minute...")
	res, err := h.pipeline.Generate(ctx, sess, d.Form)
	if err != nil {
		return h.sendError(chatID, err)
	}
	h.logger.Info("ad sent", zap.String("user_id", sess.UserID), zap.String("record_id", res.Record.ID))
	return h.sendResult(chatID, res)
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return nil
	}
	// ad:<owner>:<step>:pick:<value> or ad:<owner>:<step>:skip
	parts := strings.SplitN(strings.TrimSpace(q.Data), ":", 5)
	if len(parts) < 4 || parts[0] != callbackPrefix {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu is not for you.", true)
		return nil
	}

	stepIdx, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil
	}

	var input string
	switch parts[3] {
	case "pick":
		if len(parts) < 5 {
			return nil
		}
		input = parts[4]
	case "skip":
		input = skipInput
	default:
		return nil
	}

	sess := h.sessions.Get(UserID(ownerID), q.From.UserName)
	if d, ok := sess.Draft(); !ok || d.Step != stepIdx {
		_ = h.tg.AnswerCallback(q.ID, "This question was already answered.", false)
		return nil
	}

	_ = h.tg.AnswerCallback(q.ID, "OK", false)
	return h.advance(ctx, q.Message.Chat.ID, ownerID, sess, input)
}

func stepKeyboard(ownerID int64, idx int) tgbotapi.InlineKeyboardMarkup {
	st := steps[idx]
	at := strconv.Itoa(idx)
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range st.choices {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c, cb(ownerID, at, "pick", c)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if !st.required {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Skip", cb(ownerID, at, "skip"))))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cb(ownerID int64, parts ...string) string {
	return callbackPrefix + ":" + strconv.FormatInt(ownerID, 10) + ":" + strings.Join(parts, ":")
}
