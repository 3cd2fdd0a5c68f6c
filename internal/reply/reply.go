// Package reply implements the AI reply client: it builds chat-completion
// requests from the persisted profile, calls the configured endpoint and
// substitutes a fallback text whenever a reply cannot be obtained.
package reply

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/aiphone/internal/config"
	"github.com/edgard/aiphone/internal/logger"
	"github.com/edgard/aiphone/internal/profile"
)

var (
	ErrNoChoices    = errors.New("response has no choices")
	ErrEmptyContent = errors.New("response content is empty")
)

// Endpoint is where and how a request is authenticated.
type Endpoint struct {
	URL string
	Key string
}

// Request is a single-shot completion: one system instruction, one user turn.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer sends a Request and returns the first choice's text.
type Completer interface {
	Complete(ctx context.Context, endpoint Endpoint, req Request) (string, error)
}

// Reply is the outcome of a fetch. Text is never empty; Fallback marks a
// substituted fallback and Err carries the cause for diagnostics.
type Reply struct {
	Text     string
	Fallback bool
	Err      error
}

// Client fetches welcome messages and replies. It never returns errors to
// callers: failures are logged and replaced by fallback text.
type Client struct {
	completer Completer
	cfg       config.ReplyConfig
	log       *slog.Logger
}

// NewClient creates a Client around completer.
func NewClient(completer Completer, cfg config.ReplyConfig, log *slog.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		completer: completer,
		cfg:       cfg,
		log:       log.With("component", "reply_client"),
	}
}

// FetchWelcome asks for a short greeting in the persona's voice.
func (c *Client) FetchWelcome(ctx context.Context, p profile.Profile) Reply {
	req := Request{
		Model:       c.model(p),
		System:      p.Setting,
		User:        c.cfg.WelcomePrompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.WelcomeMaxTokens,
	}
	return c.fetch(ctx, "welcome", p, req, c.cfg.WelcomeFallback)
}

// FetchReply asks for the persona's answer to userText.
func (c *Client) FetchReply(ctx context.Context, p profile.Profile, userText string) Reply {
	req := Request{
		Model:       c.model(p),
		System:      p.Setting,
		User:        userText,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.ReplyMaxTokens,
	}
	return c.fetch(ctx, "reply", p, req, c.cfg.ReplyFallback)
}

func (c *Client) model(p profile.Profile) string {
	if p.Model != "" {
		return p.Model
	}
	return c.cfg.Model
}

func (c *Client) fetch(ctx context.Context, kind string, p profile.Profile, req Request, fallback string) (out Reply) {
	startTime := time.Now()
	log := c.log.With("kind", kind, "model", req.Model)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Completer panicked, using fallback", "panic", r)
			out = Reply{Text: fallback, Fallback: true, Err: errors.New("completer panicked")}
		}
	}()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	text, err := c.completer.Complete(ctx, Endpoint{URL: p.APIURL, Key: p.APIKey}, req)
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = ErrEmptyContent
		}
	}
	if err != nil {
		log.WarnContext(ctx, "Failed to fetch AI message, using fallback",
			"error", err, "duration", time.Since(startTime))
		return Reply{Text: fallback, Fallback: true, Err: err}
	}

	log.DebugContext(ctx, "Fetched AI message", "length", len(text), "duration", time.Since(startTime))
	return Reply{Text: text}
}
