package studio

import (
	"context"
	"strings"
	"sync"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
)

const (
	ChatGreeting     = "Hello! I'm your AI assistant. How can I help you with your game development today?"
	ChatErrorMessage = "Sorry, I encountered an error. Please try again."
)

// Chat is the assistant tab. History is append-only and opens with the
// greeting. Search grounding and deep thinking are mutually exclusive.
type Chat struct {
	svc    ChatService
	gate   *Gate
	logger *infra.Logger

	mu      sync.Mutex
	history []domain.ChatMessage
	opts    domain.ChatOptions
	pending bool
}

func NewChat(svc ChatService, gate *Gate, logger *infra.Logger) *Chat {
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Chat{
		svc:     svc,
		gate:    gate,
		logger:  logger,
		history: []domain.ChatMessage{{Role: domain.ChatRoleModel, Text: ChatGreeting}},
	}
}

// Messages returns a copy of the conversation.
func (c *Chat) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ChatMessage, len(c.history))
	copy(out, c.history)
	return out
}

// Options returns the current toggles.
func (c *Chat) Options() domain.ChatOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// SetSearch toggles search grounding. Enabling it turns thinking off.
func (c *Chat) SetSearch(on bool) domain.ChatOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.UseSearch = on
	if on {
		c.opts.UseThinking = false
	}
	return c.opts
}

// SetThinking toggles deep thinking. Enabling it turns search off.
func (c *Chat) SetThinking(on bool) domain.ChatOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.UseThinking = on
	if on {
		c.opts.UseSearch = false
	}
	return c.opts
}

// Pending reports whether a reply is outstanding.
func (c *Chat) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Send appends the user message, asks the model and appends its reply. On
// failure a fixed apology is appended instead and the error is returned.
func (c *Chat) Send(ctx context.Context, text string) (*domain.ChatMessage, error) {
	const op = "send chat message"
	if err := c.gate.Check(op); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.InvalidInput(op, "message is required")
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return nil, domain.InvalidInput(op, "a reply is still pending")
	}
	c.pending = true
	prior := make([]domain.ChatMessage, len(c.history))
	copy(prior, c.history)
	c.history = append(c.history, domain.ChatMessage{Role: domain.ChatRoleUser, Text: text})
	opts := c.opts
	c.mu.Unlock()

	reply, err := c.svc.SendChat(ctx, prior, text, opts)
	if err != nil {
		c.logger.Warn().Err(err).Bool("search", opts.UseSearch).Bool("thinking", opts.UseThinking).Msg("studio: chat reply failed")
		err = present(op, ChatErrorMessage, c.gate.Observe(err))
		c.finish(domain.ChatMessage{Role: domain.ChatRoleModel, Text: ChatErrorMessage})
		return nil, err
	}
	msg := domain.ChatMessage{Role: domain.ChatRoleModel, Text: reply.Text, Sources: reply.Sources}
	c.finish(msg)
	return &msg, nil
}

func (c *Chat) finish(msg domain.ChatMessage) {
	c.mu.Lock()
	c.history = append(c.history, msg)
	c.pending = false
	c.mu.Unlock()
}
