package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vidgenius/internal/metrics"
	"vidgenius/internal/models"
)

type fakeRemote struct {
	mu          sync.Mutex
	uploadErr   error
	initial     models.ProcessingState
	states      []models.ProcessingState
	fetchErr    error
	failureMsg  string
	completion  string
	completeErr error

	uploads   int
	fetches   int
	prompts   []string
	handles   []*models.RemoteHandle
	discarded []string
}

func (f *fakeRemote) Upload(_ context.Context, media *models.TempMedia) (*models.RemoteHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	state := f.initial
	if state == "" {
		state = models.StateProcessing
	}
	return &models.RemoteHandle{ID: "files/" + media.ID, URI: "https://remote/" + media.ID, MIMEType: media.MIMEType, State: state}, nil
}

func (f *fakeRemote) FetchState(_ context.Context, id string) (*models.RemoteHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	state := models.StateReady
	if len(f.states) > 0 {
		state = f.states[0]
		f.states = f.states[1:]
	}
	h := &models.RemoteHandle{ID: id, URI: "https://remote/" + id, State: state}
	if state == models.StateFailed {
		h.Error = f.failureMsg
	}
	return h, nil
}

func (f *fakeRemote) Complete(_ context.Context, prompt string, handles ...*models.RemoteHandle) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.handles = append(f.handles, handles...)
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return f.completion, nil
}

func (f *fakeRemote) Discard(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, id)
	return nil
}

type recordingSleeper struct {
	calls []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func testMedia() *models.TempMedia {
	return &models.TempMedia{ID: "m1", FileName: "clip.mp4", Ext: "mp4", MIMEType: "video/mp4", Path: "/tmp/clip.mp4"}
}

func newTestOrchestrator(t *testing.T, remote Remote, opts ...Option) (*Orchestrator, *recordingSleeper) {
	t.Helper()
	s := &recordingSleeper{}
	base := []Option{WithSleeper(s.sleep), WithLogger(zaptest.NewLogger(t)), WithMetrics(metrics.NewCollector("test"))}
	return NewOrchestrator(remote, append(base, opts...)...), s
}

func TestValidateGoal(t *testing.T) {
	for _, goal := range []string{"", " ", "\t\n", "   \r\n  "} {
		assert.ErrorIs(t, ValidateGoal(goal), ErrEmptyGoal, "%q", goal)
	}
	assert.NoError(t, ValidateGoal("shorten for social media"))
}

func TestAnalyzeEmptyGoalSkipsRemote(t *testing.T) {
	remote := &fakeRemote{}
	o, _ := newTestOrchestrator(t, remote)
	var stages []Stage

	out := o.Analyze(context.Background(), testMedia(), "  \n ", func(s Stage) { stages = append(stages, s) })

	assert.False(t, out.OK())
	assert.ErrorIs(t, out.Err, ErrEmptyGoal)
	assert.Zero(t, remote.uploads)
	assert.Empty(t, remote.prompts)
	assert.Empty(t, stages)
}

func TestAnalyzeHappyPath(t *testing.T) {
	remote := &fakeRemote{
		states:     []models.ProcessingState{models.StateProcessing, models.StateProcessing, models.StateReady},
		completion: "Use quick cuts.\n## Detailed Analysis\nSegment 1: 0-5s...",
	}
	o, sleeper := newTestOrchestrator(t, remote)
	var stages []Stage

	out := o.Analyze(context.Background(), testMedia(), "shorten for social media", func(s Stage) { stages = append(stages, s) })

	require.True(t, out.OK(), "err: %v", out.Err)
	assert.Equal(t, remote.completion, out.Text)
	assert.Equal(t, 3, out.PollCount)
	assert.Equal(t, []Stage{StageUploading, StagePolling, StagePrompting, StageDone}, stages)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, sleeper.calls)

	require.Len(t, remote.prompts, 1)
	assert.Contains(t, remote.prompts[0], "User goals: shorten for social media")
	require.Len(t, remote.handles, 1)
	assert.Equal(t, models.StateReady, remote.handles[0].State)
	assert.Equal(t, []string{"files/m1"}, remote.discarded)
}

func TestAnalyzeSkipsPollingWhenAlreadyReady(t *testing.T) {
	remote := &fakeRemote{initial: models.StateReady, completion: "ok"}
	o, sleeper := newTestOrchestrator(t, remote)

	out := o.Analyze(context.Background(), testMedia(), "goal", nil)

	require.True(t, out.OK())
	assert.Zero(t, remote.fetches)
	assert.Empty(t, sleeper.calls)
}

func TestAnalyzePollsUntilFirstNonProcessingState(t *testing.T) {
	states := make([]models.ProcessingState, 0, 51)
	states = append(states, models.StatePending)
	for i := 0; i < 49; i++ {
		states = append(states, models.StateProcessing)
	}
	states = append(states, models.StateReady, models.StateProcessing)
	remote := &fakeRemote{states: states, completion: "done"}
	o, _ := newTestOrchestrator(t, remote)

	out := o.Analyze(context.Background(), testMedia(), "goal", nil)

	require.True(t, out.OK())
	assert.Equal(t, 51, remote.fetches)
	assert.Equal(t, 51, out.PollCount)
}

func TestAnalyzeUploadFailure(t *testing.T) {
	remote := &fakeRemote{uploadErr: errors.New("dial tcp: connection refused")}
	o, _ := newTestOrchestrator(t, remote)
	var stages []Stage

	out := o.Analyze(context.Background(), testMedia(), "goal", func(s Stage) { stages = append(stages, s) })

	assert.False(t, out.OK())
	assert.Equal(t, StageFailed, out.Stage)
	assert.Equal(t, StageUploading, out.FailedAt)
	assert.Contains(t, out.Err.Error(), "connection refused")
	assert.Equal(t, []Stage{StageUploading, StageFailed}, stages)
	assert.Empty(t, remote.prompts)
	assert.Empty(t, remote.discarded)
}

func TestAnalyzeRemoteFailedState(t *testing.T) {
	remote := &fakeRemote{
		states:     []models.ProcessingState{models.StateProcessing, models.StateFailed},
		failureMsg: "unsupported codec",
	}
	o, _ := newTestOrchestrator(t, remote)

	out := o.Analyze(context.Background(), testMedia(), "goal", nil)

	assert.ErrorIs(t, out.Err, ErrMediaFailed)
	assert.Contains(t, out.Err.Error(), "unsupported codec")
	assert.Equal(t, StagePolling, out.FailedAt)
	assert.Empty(t, remote.prompts)
	assert.Equal(t, []string{"files/m1"}, remote.discarded)
}

func TestAnalyzeFetchError(t *testing.T) {
	remote := &fakeRemote{fetchErr: errors.New("quota exceeded")}
	o, _ := newTestOrchestrator(t, remote)

	out := o.Analyze(context.Background(), testMedia(), "goal", nil)

	assert.Equal(t, StagePolling, out.FailedAt)
	assert.Contains(t, out.Err.Error(), "quota exceeded")
}

func TestAnalyzeCompletionError(t *testing.T) {
	remote := &fakeRemote{initial: models.StateReady, completeErr: errors.New("permission denied")}
	o, _ := newTestOrchestrator(t, remote)

	out := o.Analyze(context.Background(), testMedia(), "goal", nil)

	assert.Equal(t, StagePrompting, out.FailedAt)
	assert.Contains(t, out.Err.Error(), "permission denied")
	assert.Empty(t, out.Text)
}

func TestAnalyzeMaxAttempts(t *testing.T) {
	states := make([]models.ProcessingState, 100)
	for i := range states {
		states[i] = models.StateProcessing
	}
	remote := &fakeRemote{states: states}
	o, _ := newTestOrchestrator(t, remote, WithPollPolicy(PollPolicy{Interval: time.Millisecond, MaxAttempts: 5}))

	out := o.Analyze(context.Background(), testMedia(), "goal", nil)

	assert.ErrorIs(t, out.Err, ErrPollLimit)
	assert.Equal(t, 5, remote.fetches)
	assert.Equal(t, 5, out.PollCount)
}

func TestAnalyzeMaxDuration(t *testing.T) {
	states := make([]models.ProcessingState, 100)
	for i := range states {
		states[i] = models.StateProcessing
	}
	remote := &fakeRemote{states: states}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	advance := func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	o := NewOrchestrator(remote,
		WithClock(clock),
		WithSleeper(advance),
		WithPollPolicy(PollPolicy{Interval: 2 * time.Second, MaxDuration: 7 * time.Second}),
	)

	out := o.Analyze(context.Background(), testMedia(), "goal", nil)

	assert.ErrorIs(t, out.Err, ErrPollLimit)
	assert.Equal(t, 4, remote.fetches)
}

func TestAnalyzeSleeperCancellation(t *testing.T) {
	remote := &fakeRemote{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := NewOrchestrator(remote, WithPollPolicy(PollPolicy{Interval: time.Hour}))

	out := o.Analyze(ctx, testMedia(), "goal", nil)

	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Zero(t, remote.fetches)
}
