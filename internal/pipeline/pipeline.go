// Package pipeline runs one ad generation end to end: usage gate, copy,
// image, preview and history.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adgen/internal/apperrors"
	"adgen/internal/creative"
	"adgen/internal/history"
	"adgen/internal/metrics"
	"adgen/internal/render"
	"adgen/internal/session"
	"adgen/internal/usage"
)

type TextGenerator interface {
	GenerateText(ctx context.Context, form creative.FormData) (creative.GeneratedText, error)
	GenerateVariations(ctx context.Context, form creative.FormData, n int) ([]creative.GeneratedText, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, form creative.FormData) (string, error)
}

// Result is a successful generation.
type Result struct {
	Text     creative.GeneratedText `json:"text"`
	ImageURL string                 `json:"imageUrl"`
	Score    int                    `json:"score"`
	HTML     string                 `json:"html"`
	Document render.Document        `json:"document"`
	Record   creative.AdRecord      `json:"record"`
	Usage    usage.Status           `json:"usage"`
}

type Options struct {
	Text    TextGenerator
	Image   ImageGenerator
	Gate    *usage.Gate
	History history.Store
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Timeout bounds one generation; zero means no extra bound.
	Timeout time.Duration
	// Variations is the default variation count.
	Variations int
}

type Pipeline struct {
	text       TextGenerator
	image      ImageGenerator
	gate       *usage.Gate
	history    history.Store
	metrics    *metrics.Metrics
	logger     *zap.Logger
	timeout    time.Duration
	variations int
	now        func() time.Time
}

func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := opts.Gate
	if gate == nil {
		gate = usage.NewGate(usage.Options{Logger: logger})
	}
	variations := opts.Variations
	if variations < 1 {
		variations = 3
	}
	return &Pipeline{
		text:       opts.Text,
		image:      opts.Image,
		gate:       gate,
		history:    opts.History,
		metrics:    opts.Metrics,
		logger:     logger.Named("pipeline"),
		timeout:    opts.Timeout,
		variations: variations,
		now:        time.Now,
	}
}

func (p *Pipeline) Gate() *usage.Gate { return p.gate }

// Generate runs the pipeline for the owner of sess. A second call while one
// is in flight for the same session returns Busy and does nothing.
func (p *Pipeline) Generate(ctx context.Context, sess *session.Session, form creative.FormData) (res Result, err error) {
	if !sess.TryBegin() {
		return Result{}, apperrors.Busy()
	}
	defer sess.End()
	defer p.recoverInternal(&err)

	userID := sess.UserID
	if err := p.gate.Allow(ctx, userID); err != nil {
		return Result{}, err
	}
	if err := form.Validate(); err != nil {
		return Result{}, err
	}
	form = form.WithDefaults()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := p.now()
	defer p.metrics.TrackInFlight()()
	log := p.logger.With(zap.String("user_id", userID), zap.String("product", form.ProductName))

	text, err := p.text.GenerateText(ctx, form)
	if err != nil {
		err = apperrors.As(err)
		p.finish(log, start, err)
		return Result{}, err
	}

	imageURL, err := p.image.GenerateImage(ctx, form)
	if err != nil {
		// The copy is discarded; a preview without its image is not shown.
		err = apperrors.As(err)
		p.finish(log, start, err)
		return Result{}, err
	}

	doc := render.Render(text, imageURL, form)
	record := creative.AdRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		FormData:    form,
		TextContent: text,
		ImageURL:    imageURL,
		Score:       doc.Score,
		Timestamp:   p.now().UTC(),
	}

	if p.history != nil {
		if err := p.history.Append(ctx, record); err != nil {
			log.Warn("history append failed", zap.String("record_id", record.ID), zap.Error(err))
		}
	}

	status, err := p.gate.RecordGeneration(ctx, userID)
	if err != nil {
		log.Error("usage record failed", zap.Error(err))
	}

	p.finish(log, start, nil)
	return Result{
		Text:     text,
		ImageURL: imageURL,
		Score:    doc.Score,
		HTML:     doc.HTML,
		Document: doc,
		Record:   record,
		Usage:    status,
	}, nil
}

// Variations returns up to n alternative copies. They do not count against
// the usage allowance. n <= 0 uses the configured default.
func (p *Pipeline) Variations(ctx context.Context, sess *session.Session, form creative.FormData, n int) (out []creative.GeneratedText, err error) {
	if !sess.TryBegin() {
		return nil, apperrors.Busy()
	}
	defer sess.End()
	defer p.recoverInternal(&err)

	if err := p.gate.Allow(ctx, sess.UserID); err != nil {
		return nil, err
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = p.variations
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	out, err = p.text.GenerateVariations(ctx, form.WithDefaults(), n)
	if err != nil {
		return nil, apperrors.As(err)
	}
	p.metrics.ObserveVariations(len(out))
	return out, nil
}

func (p *Pipeline) finish(log *zap.Logger, start time.Time, err error) {
	took := p.now().Sub(start)
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.KindOf(err))
		log.Warn("generation failed", zap.String("kind", outcome), zap.Duration("took", took), zap.Error(err))
	} else {
		log.Info("generation finished", zap.Duration("took", took))
	}
	p.metrics.ObserveGeneration(outcome, took)
}

// recoverInternal turns a panic into the generic failure.
func (p *Pipeline) recoverInternal(err *error) {
	if r := recover(); r != nil {
		p.logger.Error("generation panicked", zap.Any("panic", r), zap.Stack("stack"))
		*err = apperrors.Internal(fmt.Errorf("panic: %v", r))
	}
}
