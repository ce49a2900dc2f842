// Package orchestrator runs the translation pipeline for one document:
// protect placeholders, deduplicate, plan batches, translate each batch with
// retries, then reassemble and restore every unit in input order.
//
// Batches run one after another; there is no parallel issuance.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/stringtran/internal/batcher"
	"github.com/valpere/stringtran/internal/dedup"
	"github.com/valpere/stringtran/internal/placeholder"
	"github.com/valpere/stringtran/internal/retry"
	"github.com/valpere/stringtran/internal/translator"
)

var (
	// ErrMissingTranslation means a queued text had no translation after
	// every batch resolved.
	ErrMissingTranslation = errors.New("missing translation for queued text")

	// ErrUnitCountMismatch means reassembly produced a different number of
	// texts than it was given.
	ErrUnitCountMismatch = errors.New("translated unit count does not match input")
)

type Config struct {
	SourceLang string
	TargetLang string
	MaxChars   int
	MaxRetries int
	Backoff    time.Duration
	Separator  string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SourceLang: "en",
		TargetLang: "es",
		MaxChars:   batcher.DefaultMaxChars,
		MaxRetries: retry.DefaultMaxRetries,
		Backoff:    retry.DefaultBaseBackoff,
		Separator:  batcher.DefaultSeparator,
	}
}

// BatchReport describes one finished batch.
type BatchReport struct {
	Index    int
	Items    int
	Chars    int
	Attempts int
	Waited   time.Duration
	Latency  time.Duration
	Err      error
}

// Recorder receives a report for every batch, successful or not.
type Recorder interface {
	RecordBatch(ctx context.Context, report BatchReport) error
}

// Result is the outcome of a successful run.
type Result struct {
	Texts   []string
	Units   int
	Unique  int
	Batches int
}

type Orchestrator struct {
	service  translator.TranslationService
	svcCfg   translator.ServiceConfig
	config   Config
	logger   *zap.Logger
	progress func(done, total int)
	recorder Recorder
	sleep    func(time.Duration)
}

type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProgress registers fn to be called after each batch with the number
// of finished batches and the total.
func WithProgress(fn func(done, total int)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithSleep replaces the blocking wait between retries.
func WithSleep(fn func(time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func WithServiceConfig(cfg translator.ServiceConfig) Option {
	return func(o *Orchestrator) { o.svcCfg = cfg }
}

func New(service translator.TranslationService, config Config, opts ...Option) *Orchestrator {
	if config.Separator == "" {
		config.Separator = batcher.DefaultSeparator
	}
	o := &Orchestrator{
		service: service,
		config:  config,
		logger:  zap.NewNop(),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Translate returns one translated text per input text, in input order.
func (o *Orchestrator) Translate(ctx context.Context, texts []string) ([]string, error) {
	res, err := o.Run(ctx, texts)
	if err != nil {
		return nil, err
	}
	return res.Texts, nil
}

// Run translates texts and reports run statistics. Any batch that exhausts
// its retries aborts the run; no partial result is returned.
func (o *Orchestrator) Run(ctx context.Context, texts []string) (*Result, error) {
	protected := make([]string, len(texts))
	tokenMaps := make([]placeholder.TokenMap, len(texts))
	for i, text := range texts {
		protected[i], tokenMaps[i] = placeholder.Protect(text)
	}

	cache := dedup.New()
	for _, p := range protected {
		cache.Add(p)
	}
	pending := cache.Pending()

	batches := slices.Collect(batcher.Plan(pending, o.config.MaxChars, o.config.Separator))

	o.logger.Info("batches planned",
		zap.Int("units", len(texts)),
		zap.Int("unique", len(pending)),
		zap.Int("batches", len(batches)),
		zap.Int("max_chars", o.config.MaxChars),
	)

	exec := &retry.Executor{
		MaxRetries:  o.config.MaxRetries,
		BaseBackoff: o.config.Backoff,
		Sleep:       o.sleep,
		Logger:      o.logger,
	}

	for done, b := range batches {
		if err := o.runBatch(ctx, exec, cache, b); err != nil {
			return nil, err
		}
		if o.progress != nil {
			o.progress(done+1, len(batches))
		}
	}

	if missing := cache.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %d texts, first %q", ErrMissingTranslation, len(missing), missing[0])
	}

	out := make([]string, 0, len(protected))
	for i, p := range protected {
		translated, ok := cache.Lookup(p)
		if !ok {
			return nil, fmt.Errorf("%w: unit %d", ErrMissingTranslation, i)
		}
		if lost := placeholder.Validate(translated, tokenMaps[i]); len(lost) > 0 {
			o.logger.Warn("translation dropped placeholders",
				zap.Int("unit", i),
				zap.Int("missing", len(lost)),
			)
		}
		out = append(out, placeholder.Restore(translated, tokenMaps[i]))
	}

	if len(out) != len(texts) {
		return nil, fmt.Errorf("%w: %d translated, %d input", ErrUnitCountMismatch, len(out), len(texts))
	}

	o.logger.Info("run finished",
		zap.Int("units", len(out)),
		zap.Int("batches", len(batches)),
	)

	return &Result{
		Texts:   out,
		Units:   len(texts),
		Unique:  len(pending),
		Batches: len(batches),
	}, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, exec *retry.Executor, cache *dedup.Cache, b batcher.Batch) error {
	var latency time.Duration
	call := func(ctx context.Context, items []string) ([]string, error) {
		res, err := o.service.Translate(ctx, o.svcCfg, translator.TranslateRequest{
			Texts:      items,
			SourceLang: o.config.SourceLang,
			TargetLang: o.config.TargetLang,
			Separator:  o.config.Separator,
		})
		if res != nil {
			latency += res.Latency
		}
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, fmt.Errorf("%s: no result", o.service.Name())
		}
		if res.Error != "" {
			return nil, fmt.Errorf("%s: %s", res.ServiceName, res.Error)
		}
		return res.Translations, nil
	}

	chars := b.Size(o.config.Separator)
	o.logger.Debug("translating batch",
		zap.Int("batch", b.Index),
		zap.Int("items", len(b.Items)),
		zap.Int("chars", chars),
	)

	r := exec.Invoke(ctx, call, b.Items)
	o.record(ctx, BatchReport{
		Index:    b.Index,
		Items:    len(b.Items),
		Chars:    chars,
		Attempts: r.Attempts,
		Waited:   r.Waited,
		Latency:  latency,
		Err:      r.Err,
	})
	if !r.OK() {
		return fmt.Errorf("batch %d: %w", b.Index, r.Err)
	}

	values := retry.FillBlanks(b.Items, r.Values)
	for i, src := range b.Items {
		cache.Resolve(src, values[i])
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, report BatchReport) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordBatch(ctx, report); err != nil {
		o.logger.Warn("failed to record batch", zap.Int("batch", report.Index), zap.Error(err))
	}
}
