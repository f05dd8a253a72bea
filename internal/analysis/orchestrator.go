package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vidgenius/internal/metrics"
	"vidgenius/internal/models"
)

// Stage is a step of the remote analysis state machine.
type Stage string

const (
	StageUploading Stage = "uploading"
	StagePolling   Stage = "polling"
	StagePrompting Stage = "prompting"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

var (
	ErrEmptyGoal   = errors.New("please define optimization goals before analysis")
	ErrMediaFailed = errors.New("remote media processing failed")
	ErrPollLimit   = errors.New("remote media still processing after poll limit")
)

// Remote is the hosted multimodal inference service.
type Remote interface {
	Upload(ctx context.Context, media *models.TempMedia) (*models.RemoteHandle, error)
	FetchState(ctx context.Context, id string) (*models.RemoteHandle, error)
	Complete(ctx context.Context, prompt string, handles ...*models.RemoteHandle) (string, error)
	Discard(ctx context.Context, id string) error
}

// Observer is notified of every stage the orchestrator enters.
type Observer func(Stage)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// PollPolicy bounds the wait for remote ingestion. Zero values are unbounded.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	MaxDuration time.Duration
}

// DefaultPollPolicy polls once a second without a ceiling.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: time.Second}
}

// Outcome is the result of one analysis: either Text is set and Stage is
// StageDone, or Err is set, Stage is StageFailed and FailedAt names the stage
// that broke.
type Outcome struct {
	Stage     Stage
	FailedAt  Stage
	Text      string
	Err       error
	PollCount int
}

// OK reports whether the analysis produced a completion.
func (o Outcome) OK() bool {
	return o.Stage == StageDone && o.Err == nil
}

// ValidateGoal rejects empty or whitespace-only goals.
func ValidateGoal(goal string) error {
	if strings.TrimSpace(goal) == "" {
		return ErrEmptyGoal
	}
	return nil
}

// Orchestrator drives one upload → poll → prompt round against a Remote.
// It holds no per-request state and may be shared.
type Orchestrator struct {
	remote  Remote
	policy  PollPolicy
	sleep   Sleeper
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPollPolicy replaces the default policy; a non-positive interval becomes one second.
func WithPollPolicy(p PollPolicy) Option {
	return func(o *Orchestrator) {
		if p.Interval <= 0 {
			p.Interval = time.Second
		}
		o.policy = p
	}
}

// WithSleeper swaps the wait between polls, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithClock sets the time source used for stage timings and MaxDuration.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records stage timings and outcomes; nil disables them.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = c }
}

// NewOrchestrator polls once a second without a ceiling unless an option says otherwise.
func NewOrchestrator(remote Remote, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		remote: remote,
		policy: DefaultPollPolicy(),
		sleep:  sleepContext,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o
}

// Analyze runs the workflow for media and goal. It never panics on remote
// errors; every failure is reported through the returned Outcome.
func (o *Orchestrator) Analyze(ctx context.Context, media *models.TempMedia, goal string, observe Observer) Outcome {
	if observe == nil {
		observe = func(Stage) {}
	}
	if err := ValidateGoal(goal); err != nil {
		return Outcome{Stage: StageFailed, Err: err}
	}
	if media == nil {
		return Outcome{Stage: StageFailed, Err: errors.New("media is required")}
	}

	o.metrics.AnalysisStarted()
	defer o.metrics.AnalysisFinished()
	logger := o.logger.With(zap.String("media_id", media.ID))

	fail := func(stage Stage, err error, polls int) Outcome {
		logger.Warn("analysis failed", zap.String("stage", string(stage)), zap.Error(err))
		o.metrics.RecordAnalysis(string(StageFailed), string(stage))
		observe(StageFailed)
		return Outcome{Stage: StageFailed, FailedAt: stage, Err: err, PollCount: polls}
	}

	observe(StageUploading)
	started := o.now()
	handle, err := o.remote.Upload(ctx, media)
	if err != nil {
		return fail(StageUploading, fmt.Errorf("upload media: %w", err), 0)
	}
	if handle == nil {
		return fail(StageUploading, errors.New("upload media: remote returned no handle"), 0)
	}
	o.metrics.ObserveStage(string(StageUploading), o.now().Sub(started))
	defer o.discard(handle.ID, logger)
	logger.Debug("media uploaded", zap.String("remote_id", handle.ID), zap.String("state", string(handle.State)))

	observe(StagePolling)
	started = o.now()
	handle, polls, err := o.waitReady(ctx, handle)
	o.metrics.ObservePollAttempts(polls)
	if err != nil {
		return fail(StagePolling, err, polls)
	}
	o.metrics.ObserveStage(string(StagePolling), o.now().Sub(started))

	observe(StagePrompting)
	started = o.now()
	text, err := o.remote.Complete(ctx, BuildPrompt(goal), handle)
	if err != nil {
		return fail(StagePrompting, fmt.Errorf("generate suggestions: %w", err), polls)
	}
	o.metrics.ObserveStage(string(StagePrompting), o.now().Sub(started))

	o.metrics.RecordAnalysis(string(StageDone), "")
	observe(StageDone)
	logger.Info("analysis complete", zap.Int("polls", polls), zap.Int("chars", len(text)))
	return Outcome{Stage: StageDone, Text: text, PollCount: polls}
}

// waitReady re-fetches the handle until it leaves the processing states.
func (o *Orchestrator) waitReady(ctx context.Context, handle *models.RemoteHandle) (*models.RemoteHandle, int, error) {
	started := o.now()
	polls := 0
	for handle.State.InProgress() {
		if o.policy.MaxAttempts > 0 && polls >= o.policy.MaxAttempts {
			return nil, polls, fmt.Errorf("%w (%d attempts)", ErrPollLimit, polls)
		}
		if o.policy.MaxDuration > 0 && o.now().Sub(started) >= o.policy.MaxDuration {
			return nil, polls, fmt.Errorf("%w (%s)", ErrPollLimit, o.policy.MaxDuration)
		}
		if err := o.sleep(ctx, o.policy.Interval); err != nil {
			return nil, polls, fmt.Errorf("wait for media: %w", err)
		}
		next, err := o.remote.FetchState(ctx, handle.ID)
		polls++
		if err != nil {
			return nil, polls, fmt.Errorf("fetch media state: %w", err)
		}
		if next == nil {
			return nil, polls, errors.New("fetch media state: remote returned no handle")
		}
		handle = next
	}
	if handle.State == models.StateFailed {
		if handle.Error != "" {
			return nil, polls, fmt.Errorf("%w: %s", ErrMediaFailed, handle.Error)
		}
		return nil, polls, ErrMediaFailed
	}
	return handle, polls, nil
}

// discard drops the remote copy; failures only cost remote storage until it expires.
func (o *Orchestrator) discard(id string, logger *zap.Logger) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.remote.Discard(ctx, id); err != nil {
		logger.Debug("discard remote media failed", zap.String("remote_id", id), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
