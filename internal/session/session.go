// Package session bootstraps one chat session per page load: it decides
// between the configuration form and the chat from the persisted profile,
// accepts form submissions and routes user messages to the reply client.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/edgard/aiphone/internal/profile"
	"github.com/edgard/aiphone/internal/reply"
	"github.com/edgard/aiphone/internal/transcript"
)

// State is the lifecycle state of a session. There is no way back from Active.
type State string

const (
	StateAwaitingConfiguration State = "awaiting_configuration"
	StateActive                State = "active"
)

// AvatarKind tells the renderer whether the avatar is an image or literal text.
type AvatarKind string

const (
	AvatarImage AvatarKind = "image"
	AvatarText  AvatarKind = "text"
)

var (
	// ErrMissingCredentials is returned by Submit when apiUrl or apiKey is blank.
	ErrMissingCredentials = profile.ErrMissingCredentials
	ErrEmptyMessage       = errors.New("message is empty")
	ErrNotActive          = errors.New("session is awaiting configuration")
	ErrAlreadyActive      = errors.New("session is already configured")
)

// ClassifyAvatar returns AvatarImage for data URIs and http(s) URLs.
func ClassifyAvatar(avatar string) AvatarKind {
	if strings.HasPrefix(avatar, "data:") || strings.HasPrefix(avatar, "http") {
		return AvatarImage
	}
	return AvatarText
}

// Form is the raw content of the configuration form.
type Form struct {
	Avatar  string `json:"avatar"`
	Name    string `json:"name"`
	Setting string `json:"setting"`
	APIURL  string `json:"apiUrl"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
}

// Profile converts the form into a trimmed, defaulted record.
func (f Form) Profile() profile.Profile {
	return profile.New(f.Avatar, f.Name, f.Setting, f.APIURL, f.APIKey, f.Model)
}

// Display is what the page needs to draw the chat header. It never carries
// credentials.
type Display struct {
	profile.Public
	AvatarKind AvatarKind `json:"avatarKind"`
}

// Session is one page load.
type Session struct {
	ID        string
	CreatedAt time.Time

	mgr        *Manager
	transcript *transcript.Transcript

	mu       sync.RWMutex
	state    State
	profile  profile.Profile
	lastSeen time.Time
	attached int
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Display returns the header profile, or false while awaiting configuration.
func (s *Session) Display() (Display, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateActive {
		return Display{}, false
	}
	return Display{Public: s.profile.Public(), AvatarKind: ClassifyAvatar(s.profile.Avatar)}, true
}

// Transcript returns the session's chat log.
func (s *Session) Transcript() *transcript.Transcript {
	return s.transcript
}

// LastSeen is the last time the session was used.
func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

func (s *Session) touch() {
	now := s.mgr.now()
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// Attach marks a page as connected to the session. Attached sessions are
// never swept; the returned func detaches and restarts the idle clock.
func (s *Session) Attach() (detach func()) {
	s.mu.Lock()
	s.attached++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			now := s.mgr.now()
			s.mu.Lock()
			s.attached--
			s.lastSeen = now
			s.mu.Unlock()
		})
	}
}

// Attached reports whether any page is connected.
func (s *Session) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached > 0
}

// Submit validates and persists the form, then activates the session and
// starts the welcome fetch. On error the state is unchanged.
func (s *Session) Submit(ctx context.Context, form Form) error {
	s.touch()

	s.mu.Lock()
	if s.state == StateActive {
		s.mu.Unlock()
		return ErrAlreadyActive
	}

	p := form.Profile()
	if err := p.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := s.mgr.store.Save(ctx, p); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	s.profile = p
	s.state = StateActive
	s.mu.Unlock()

	s.mgr.log.InfoContext(ctx, "Session configured", "session_id", s.ID, "name", p.Name)
	s.welcome(p)
	return nil
}

// Send appends the user's message and fetches the reply in the background.
// Overlapping sends are not sequenced: replies land in arrival order.
func (s *Session) Send(ctx context.Context, text string) (transcript.Entry, error) {
	s.touch()

	text = strings.TrimSpace(text)
	if text == "" {
		return transcript.Entry{}, ErrEmptyMessage
	}

	s.mu.RLock()
	state, p := s.state, s.profile
	s.mu.RUnlock()
	if state != StateActive {
		return transcript.Entry{}, ErrNotActive
	}

	entry := s.transcript.Append(text, transcript.RoleUser)
	s.mgr.log.DebugContext(ctx, "User message appended", "session_id", s.ID, "seq", entry.Seq)

	s.mgr.goAsync(func(bg context.Context) {
		s.appendReply(s.mgr.replier.FetchReply(bg, p, text))
	})
	return entry, nil
}

func (s *Session) welcome(p profile.Profile) {
	s.mgr.goAsync(func(bg context.Context) {
		s.appendReply(s.mgr.replier.FetchWelcome(bg, p))
	})
}

func (s *Session) appendReply(r reply.Reply) {
	if r.Fallback {
		s.transcript.AppendFallback(r.Text)
		return
	}
	s.transcript.Append(r.Text, transcript.RoleAssistant)
}
