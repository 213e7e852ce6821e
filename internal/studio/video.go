package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
	"spritestudio/internal/infra/credentials"
	"spritestudio/internal/poller"
	"spritestudio/internal/storage"
)

const (
	// KeyRequiredMessage is shown while the video tab has no selected key.
	KeyRequiredMessage = "This feature requires an API key to proceed."

	submitCredentialMessage = "API Key is not valid. Please select a valid key."
	videoFailureMessage     = "Failed to generate video. Please try again."

	maxVideoRuns     = 10
	subscriberBuffer = 32
)

// VideoRun is a snapshot of one submit, poll and download cycle.
type VideoRun struct {
	ID          string          `json:"id"`
	State       domain.RunState `json:"state"`
	Prompt      string          `json:"prompt"`
	AspectRatio string          `json:"aspect_ratio"`
	Handle      string          `json:"handle,omitempty"`
	Progress    poller.Progress `json:"progress"`
	Error       string          `json:"error,omitempty"`
	ErrorKind   domain.Kind     `json:"error_kind,omitempty"`
	SavedPath   string          `json:"saved_path,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	HasAsset    bool            `json:"has_asset"`
}

// VideoEvent is pushed to subscribers on every state or progress change.
type VideoEvent struct {
	RunID    string          `json:"run_id"`
	State    domain.RunState `json:"state"`
	Progress poller.Progress `json:"progress"`
	Error    string          `json:"error,omitempty"`
}

type videoRun struct {
	VideoRun
	asset       *domain.AssetResult
	cancel      context.CancelFunc
	done        chan struct{}
	subscribers map[int]chan VideoEvent
	nextSub     int
}

func (r *videoRun) event() VideoEvent {
	return VideoEvent{RunID: r.ID, State: r.State, Progress: r.Progress, Error: r.Error}
}

// VideoOptions wires a VideoGenerator.
type VideoOptions struct {
	Service     VideoService
	Fetcher     Fetcher
	Poller      *poller.Poller
	Credentials Credentials
	Gate        *Gate
	Downloads   *storage.FileStore
	Logger      *infra.Logger
}

// VideoGenerator is the image-to-video tab. At most one run is active; a new
// submission cancels the previous one.
type VideoGenerator struct {
	svc       VideoService
	fetcher   Fetcher
	poller    *poller.Poller
	gate      *Gate
	downloads *storage.FileStore
	logger    *infra.Logger

	base        context.Context
	stop        context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()

	mu          sync.Mutex
	keySelected bool
	current     *videoRun
	runs        map[string]*videoRun
	order       []string
}

func NewVideoGenerator(opts VideoOptions) *VideoGenerator {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewGate(opts.Credentials, logger)
	}
	p := opts.Poller
	if p == nil {
		p = poller.New(opts.Service, poller.Options{Logger: logger})
	}
	base, stop := context.WithCancel(context.Background())
	v := &VideoGenerator{
		svc:         opts.Service,
		fetcher:     opts.Fetcher,
		poller:      p,
		gate:        gate,
		downloads:   opts.Downloads,
		logger:      logger,
		base:        base,
		stop:        stop,
		keySelected: gate.Present(),
		runs:        map[string]*videoRun{},
	}
	if opts.Credentials != nil {
		v.unsubscribe = opts.Credentials.Subscribe(func(ev credentials.Event) {
			v.mu.Lock()
			v.keySelected = ev.Present
			v.mu.Unlock()
		})
	}
	return v
}

// KeySelected reports whether the tab's own key gate is open.
func (v *VideoGenerator) KeySelected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.keySelected
}

// SelectKey opens the tab's key gate. It needs a stored credential.
func (v *VideoGenerator) SelectKey() error {
	if err := v.gate.Check("select video key"); err != nil {
		return err
	}
	v.mu.Lock()
	v.keySelected = true
	v.mu.Unlock()
	return nil
}

func (v *VideoGenerator) deselectKey() {
	v.mu.Lock()
	v.keySelected = false
	v.mu.Unlock()
}

// Submit validates the input, cancels any active run and starts a new one in
// the background. The returned snapshot is in the submitting state.
func (v *VideoGenerator) Submit(ctx context.Context, start *domain.InputImage, prompt, aspectRatio string) (VideoRun, error) {
	const op = "generate video"
	if !v.KeySelected() {
		return VideoRun{}, domain.NewError(domain.KindCredentialMissing, op, KeyRequiredMessage, nil)
	}
	prompt = strings.TrimSpace(prompt)
	if start.Empty() || prompt == "" {
		return VideoRun{}, domain.InvalidInput(op, "Please upload an image and provide a prompt for the video.")
	}
	aspectRatio = strings.TrimSpace(aspectRatio)
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}
	if aspectRatio != "16:9" && aspectRatio != "9:16" {
		return VideoRun{}, domain.InvalidInput(op, "Aspect ratio must be 16:9 or 9:16.")
	}
	if err := ctx.Err(); err != nil {
		return VideoRun{}, domain.NewError(domain.KindCancelled, op, "request cancelled", err)
	}

	runCtx, cancel := context.WithCancel(v.base)
	run := &videoRun{
		VideoRun: VideoRun{
			ID:          uuid.NewString(),
			State:       domain.RunStateSubmitting,
			Prompt:      prompt,
			AspectRatio: aspectRatio,
			Progress:    poller.Progress{Message: poller.LoadingMessages[0]},
			StartedAt:   time.Now().UTC(),
		},
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: map[int]chan VideoEvent{},
	}

	v.mu.Lock()
	if prev := v.current; prev != nil {
		prev.cancel()
		prev.asset = nil
		prev.HasAsset = false
	}
	v.current = run
	v.runs[run.ID] = run
	v.order = append(v.order, run.ID)
	v.pruneLocked()
	snapshot := run.VideoRun
	v.mu.Unlock()

	v.logger.Info().Str("job_id", run.ID).Str("aspect", aspectRatio).Msg("studio: video run started")
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer close(run.done)
		v.execute(runCtx, run, start)
	}()
	return snapshot, nil
}

func (v *VideoGenerator) execute(ctx context.Context, run *videoRun, start *domain.InputImage) {
	job, err := v.svc.SubmitVideo(ctx, start, run.Prompt, run.AspectRatio)
	if err != nil {
		v.fail(run, err, submitCredentialMessage)
		return
	}
	v.update(run, func(r *videoRun) {
		r.State = domain.RunStatePolling
		r.Handle = job.Handle
	})

	p := v.poller.WithProgress(func(pr poller.Progress) {
		v.update(run, func(r *videoRun) { r.Progress = pr })
	})
	job, err = p.Poll(ctx, job)
	if err != nil {
		v.fail(run, err, CredentialErrorMessage)
		return
	}

	v.update(run, func(r *videoRun) { r.State = domain.RunStateDownloading })
	asset, err := v.fetcher.Fetch(ctx, job.ResultLocator, domain.AssetKindVideo)
	if err != nil {
		v.fail(run, err, CredentialErrorMessage)
		return
	}

	saved := ""
	if v.downloads.Enabled() {
		path, saveErr := v.downloads.Save(ctx, run.ID, asset)
		if saveErr != nil {
			v.logger.Warn().Err(saveErr).Str("job_id", run.ID).Msg("studio: save video copy failed")
		}
		saved = path
	}

	v.update(run, func(r *videoRun) {
		r.State = domain.RunStateSucceeded
		r.asset = asset
		r.HasAsset = true
		r.SavedPath = saved
		now := time.Now().UTC()
		r.FinishedAt = &now
	})
	v.logger.Info().Str("job_id", run.ID).Int("bytes", asset.Size()).Msg("studio: video run succeeded")
}

func (v *VideoGenerator) fail(run *videoRun, err error, credentialMessage string) {
	kind := domain.KindOf(err)
	state := domain.RunStateFailed
	message := domain.MessageOf(err)
	switch {
	case errors.Is(err, domain.ErrCancelled) || errors.Is(err, context.Canceled):
		state = domain.RunStateCancelled
		kind = domain.KindCancelled
		message = "Video generation was cancelled."
	case errors.Is(err, domain.ErrCredential):
		message = credentialMessage
		v.gate.Observe(err)
		v.deselectKey()
	case message == "":
		message = videoFailureMessage
	}
	v.update(run, func(r *videoRun) {
		r.State = state
		r.Error = message
		r.ErrorKind = kind
		now := time.Now().UTC()
		r.FinishedAt = &now
	})
	v.logger.Warn().Err(err).Str("job_id", run.ID).Str("state", string(state)).Msg("studio: video run ended without result")
}

// update mutates run under the lock and fans the new state out. Terminal
// states close every subscriber channel.
func (v *VideoGenerator) update(run *videoRun, fn func(*videoRun)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if run.State.Terminal() {
		return
	}
	fn(run)
	ev := run.event()
	for id, ch := range run.subscribers {
		select {
		case ch <- ev:
		default:
		}
		if run.State.Terminal() {
			close(ch)
			delete(run.subscribers, id)
		}
	}
}

func (v *VideoGenerator) pruneLocked() {
	for len(v.order) > maxVideoRuns {
		id := v.order[0]
		v.order = v.order[1:]
		delete(v.runs, id)
	}
}

// Current returns the most recent run.
func (v *VideoGenerator) Current() (VideoRun, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return VideoRun{}, false
	}
	return v.current.VideoRun, true
}

// Get returns the run with id.
func (v *VideoGenerator) Get(id string) (VideoRun, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	run, ok := v.runs[id]
	if !ok {
		return VideoRun{}, domain.InvalidInput("get video run", "unknown video run")
	}
	return run.VideoRun, nil
}

// Asset returns the downloaded video of a succeeded run.
func (v *VideoGenerator) Asset(id string) (*domain.AssetResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	run, ok := v.runs[id]
	if !ok || run.asset == nil {
		return nil, domain.InvalidInput("download video", "video is not available")
	}
	return run.asset, nil
}

// Cancel stops the run with id. Cancelling a finished run is a no-op.
func (v *VideoGenerator) Cancel(id string) error {
	v.mu.Lock()
	run, ok := v.runs[id]
	v.mu.Unlock()
	if !ok {
		return domain.InvalidInput("cancel video run", "unknown video run")
	}
	run.cancel()
	return nil
}

// Wait blocks until run id finishes or ctx is done.
func (v *VideoGenerator) Wait(ctx context.Context, id string) (VideoRun, error) {
	v.mu.Lock()
	run, ok := v.runs[id]
	v.mu.Unlock()
	if !ok {
		return VideoRun{}, domain.InvalidInput("wait video run", "unknown video run")
	}
	select {
	case <-run.done:
		return v.Get(id)
	case <-ctx.Done():
		return VideoRun{}, ctx.Err()
	}
}

// Subscribe streams events for run id. The first event is the current
// state; the channel closes after the terminal event. The returned function
// releases the subscription early.
func (v *VideoGenerator) Subscribe(id string) (<-chan VideoEvent, func(), error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	run, ok := v.runs[id]
	if !ok {
		return nil, nil, domain.InvalidInput("subscribe video run", "unknown video run")
	}
	ch := make(chan VideoEvent, subscriberBuffer)
	ch <- run.event()
	if run.State.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	subID := run.nextSub
	run.nextSub++
	run.subscribers[subID] = ch
	release := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if c, ok := run.subscribers[subID]; ok {
			close(c)
			delete(run.subscribers, subID)
		}
	}
	return ch, release, nil
}

// Close cancels every run and waits for the workers to exit.
func (v *VideoGenerator) Close() {
	v.stop()
	v.wg.Wait()
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}
