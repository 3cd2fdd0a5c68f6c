package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"

	"github.com/edgard/aiphone/internal/logger"
	"github.com/edgard/aiphone/internal/session"
	"github.com/edgard/aiphone/internal/transcript"
)

const (
	aiProcessingTimeout = 2 * time.Minute
	sendMessageTimeout  = 10 * time.Second
)

// NotConfiguredText is sent while no profile has been saved.
const NotConfiguredText = "I'm not set up yet. Open the phone page and fill in the API settings first."

var errNoReply = errors.New("no reply before timeout")

// RegisteredHandler describes one handler registration.
type RegisteredHandler struct {
	HandlerType bot.HandlerType
	Pattern     string
	Handler     bot.HandlerFunc
	Middleware  []bot.Middleware
	MatchType   bot.MatchType
}

// Bridge maps Telegram chats to sessions.
type Bridge struct {
	sessions *session.Manager
	logger   *slog.Logger
	timeout  time.Duration

	mu    sync.Mutex
	chats map[int64]string
}

// NewBridge creates a Bridge over sessions.
func NewBridge(sessions *session.Manager, log *slog.Logger) *Bridge {
	if log == nil {
		log = logger.Discard()
	}
	return &Bridge{
		sessions: sessions,
		logger:   log.With("component", "telegram_bridge"),
		timeout:  aiProcessingTimeout,
		chats:    make(map[int64]string),
	}
}

// Handlers returns the handler registrations: /start opens a new session and
// answers with its welcome.
func (br *Bridge) Handlers() map[string]RegisteredHandler {
	return map[string]RegisteredHandler{
		"/start": {
			HandlerType: bot.HandlerTypeMessageText,
			Pattern:     "start",
			Handler:     br.handleStart,
			MatchType:   bot.MatchTypeCommandStartOnly,
		},
	}
}

// DefaultHandler answers every other text message with the persona's reply.
func (br *Bridge) DefaultHandler() bot.HandlerFunc {
	return br.handleMessage
}

// Start opens a fresh session for chatID and returns its welcome text.
func (br *Bridge) Start(ctx context.Context, chatID int64) string {
	sess := br.sessions.Bootstrap(ctx)
	br.mu.Lock()
	br.chats[chatID] = sess.ID
	br.mu.Unlock()

	if sess.State() != session.StateActive {
		return NotConfiguredText
	}

	entries, cancel := sess.Transcript().Subscribe()
	defer cancel()

	entry, err := br.await(ctx, sess.Transcript(), entries, 0)
	if err != nil {
		br.logger.WarnContext(ctx, "No welcome received", "chat_id", chatID, "error", err)
		return ""
	}
	return entry.Text
}

// Respond sends text through the chat's session and waits for the reply.
// An empty string means there is nothing to send back.
func (br *Bridge) Respond(ctx context.Context, chatID int64, text string) string {
	sess, created := br.sessionFor(ctx, chatID)
	if sess.State() != session.StateActive {
		return NotConfiguredText
	}

	entries, cancel := sess.Transcript().Subscribe()
	defer cancel()

	// A fresh session greets first; the welcome must not be taken as the
	// answer to this message.
	if created {
		if _, err := br.await(ctx, sess.Transcript(), entries, 0); err != nil {
			br.logger.WarnContext(ctx, "No welcome received", "chat_id", chatID, "error", err)
			return ""
		}
	}

	userEntry, err := sess.Send(ctx, text)
	if err != nil {
		if !errors.Is(err, session.ErrEmptyMessage) {
			br.logger.WarnContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
		}
		return ""
	}

	entry, err := br.await(ctx, sess.Transcript(), entries, userEntry.Seq)
	if err != nil {
		br.logger.WarnContext(ctx, "No reply received", "chat_id", chatID, "error", err)
		return ""
	}
	return entry.Text
}

// sessionFor returns the chat's live session, reporting whether it had to be
// created.
func (br *Bridge) sessionFor(ctx context.Context, chatID int64) (*session.Session, bool) {
	br.mu.Lock()
	id, ok := br.chats[chatID]
	br.mu.Unlock()

	if ok {
		if sess, live := br.sessions.Get(id); live {
			return sess, false
		}
	}

	// Evicted or first contact: start over, as a page reload would.
	sess := br.sessions.Bootstrap(ctx)
	br.mu.Lock()
	br.chats[chatID] = sess.ID
	br.mu.Unlock()
	return sess, true
}

// await returns the first assistant entry with Seq > after.
func (br *Bridge) await(ctx context.Context, tr *transcript.Transcript, entries <-chan transcript.Entry, after int) (transcript.Entry, error) {
	for _, e := range tr.Entries(after) {
		if e.Role == transcript.RoleAssistant {
			return e, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, br.timeout)
	defer cancel()

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return transcript.Entry{}, errNoReply
			}
			if e.Seq > after && e.Role == transcript.RoleAssistant {
				return e, nil
			}
		case <-ctx.Done():
			return transcript.Entry{}, errNoReply
		}
	}
}
