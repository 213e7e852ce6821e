// Package studio holds the per-tab controllers: input validation, credential
// gating and the state each screen renders.
package studio

import (
	"context"
	"errors"
	"sync"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
	"spritestudio/internal/infra/credentials"
	"spritestudio/internal/poller"
	"spritestudio/internal/storage"
)

// CredentialMissingMessage is shown by every gated tab without a key.
const CredentialMissingMessage = "Please set your Gemini API key in the settings to use this feature."

// CredentialErrorMessage asks the user to enter the key again.
const CredentialErrorMessage = "API Key error. Please re-select your API key."

// ImageService covers the single-request image operations.
type ImageService interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*domain.AssetResult, error)
	EditImage(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error)
	AnalyzeImage(ctx context.Context, img *domain.InputImage, prompt string) (string, error)
	GenerateSpriteFrames(ctx context.Context, reference *domain.InputImage, animationPrompt string, frameCount int) ([]domain.AssetResult, error)
}

// VideoService submits long-running video jobs.
type VideoService interface {
	SubmitVideo(ctx context.Context, start *domain.InputImage, prompt, aspectRatio string) (*domain.GenerationJob, error)
	poller.StatusChecker
}

// ChatService answers chat turns.
type ChatService interface {
	SendChat(ctx context.Context, history []domain.ChatMessage, message string, opts domain.ChatOptions) (*domain.ChatMessage, error)
}

// Service is everything the studio needs from the generation backend.
type Service interface {
	ImageService
	VideoService
	ChatService
}

// Fetcher downloads a finished job's result.
type Fetcher interface {
	Fetch(ctx context.Context, locator string, kind domain.AssetKind) (*domain.AssetResult, error)
}

// Credentials is the view of the credential store the controllers use.
type Credentials interface {
	Present() bool
	Invalidate(reason string)
	Subscribe(fn func(credentials.Event)) func()
}

// Gate blocks actions while no usable credential exists and revokes it when
// the service rejects it.
type Gate struct {
	creds  Credentials
	logger *infra.Logger
}

// NewGate wraps creds.
func NewGate(creds Credentials, logger *infra.Logger) *Gate {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Gate{creds: creds, logger: logger}
}

// Present reports whether gated actions may run.
func (g *Gate) Present() bool {
	return g.creds != nil && g.creds.Present()
}

// Check returns a KindCredentialMissing error when no credential is present.
func (g *Gate) Check(op string) error {
	if !g.Present() {
		return domain.NewError(domain.KindCredentialMissing, op, CredentialMissingMessage, nil)
	}
	return nil
}

// Observe inspects err and flips the store to unconfigured on a credential
// rejection. err is returned unchanged.
func (g *Gate) Observe(err error) error {
	if err != nil && errors.Is(err, domain.ErrCredential) && g.creds != nil {
		g.logger.Warn().Err(err).Msg("studio: credential rejected, re-gating")
		g.creds.Invalidate(domain.MessageOf(err))
	}
	return err
}

// Options wires the studio.
type Options struct {
	Service     Service
	Fetcher     Fetcher
	Credentials Credentials
	Poller      *poller.Poller
	Downloads   *storage.FileStore
	FrameCount  int
	Logger      *infra.Logger
}

// Studio aggregates one controller per tab.
type Studio struct {
	gate *Gate

	Sprite   *SpriteGenerator
	Image    *ImageGenerator
	Editor   *ImageEditor
	Video    *VideoGenerator
	Analyzer *ImageAnalyzer
	Chat     *Chat

	mu     sync.RWMutex
	active Tab
}

// New builds the studio and every tab controller.
func New(opts Options) *Studio {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	gate := NewGate(opts.Credentials, infra.Component(logger, "gate"))
	s := &Studio{
		gate:     gate,
		Sprite:   NewSpriteGenerator(opts.Service, gate, opts.FrameCount, infra.Component(logger, "sprite")),
		Image:    NewImageGenerator(opts.Service, gate, opts.Downloads),
		Editor:   NewImageEditor(opts.Service, gate, opts.Downloads),
		Analyzer: NewImageAnalyzer(opts.Service, gate),
		Chat:     NewChat(opts.Service, gate, infra.Component(logger, "chat")),
		active:   DefaultTab,
	}
	s.Video = NewVideoGenerator(VideoOptions{
		Service:     opts.Service,
		Fetcher:     opts.Fetcher,
		Poller:      opts.Poller,
		Credentials: opts.Credentials,
		Gate:        gate,
		Downloads:   opts.Downloads,
		Logger:      infra.Component(logger, "video"),
	})
	return s
}

// Gate exposes the shared credential gate.
func (s *Studio) Gate() *Gate {
	return s.gate
}

// Active returns the selected tab.
func (s *Studio) Active() Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Select switches the active tab.
func (s *Studio) Select(tab Tab) {
	s.mu.Lock()
	s.active = tab
	s.mu.Unlock()
}

// TabStatus is the per-tab summary the navigation renders.
type TabStatus struct {
	Tab    Tab    `json:"tab"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
	Locked bool   `json:"locked"`
}

// Tabs reports every tab with its gate state.
func (s *Studio) Tabs() []TabStatus {
	active := s.Active()
	present := s.gate.Present()
	out := make([]TabStatus, 0, len(Tabs))
	for _, t := range Tabs {
		locked := t.NeedsCredential() && !present
		if t == TabVideo {
			locked = !s.Video.KeySelected()
		}
		out = append(out, TabStatus{Tab: t, Label: t.Label(), Active: t == active, Locked: locked})
	}
	return out
}

// Close stops background work.
func (s *Studio) Close() {
	s.Video.Close()
}

// present rewrites a backend failure into the message the tab shows. Input
// and gate errors already carry their final message; everything else keeps
// its kind and status and wraps the original cause.
func present(op, message string, err error) error {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		return domain.NewError(domain.KindService, op, message, err)
	}
	switch derr.Kind {
	case domain.KindInvalidInput, domain.KindCredentialMissing, domain.KindCancelled:
		return err
	case domain.KindCredential:
		message = CredentialErrorMessage
	}
	out := domain.NewError(derr.Kind, op, message, err)
	out.Status = derr.Status
	return out
}
