// Package transcript keeps the ordered, append-only chat log of one session
// and fans new entries out to subscribers (the page's WebSocket).
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role is the author of an entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one message in the transcript. Entries are never edited.
type Entry struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Fallback  bool      `json:"fallback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// subscriberBuffer bounds each subscriber channel; slow readers miss live
// entries but can catch up with Entries(after).
const subscriberBuffer = 64

// Transcript is safe for concurrent use.
type Transcript struct {
	mu          sync.RWMutex
	entries     []Entry
	subscribers map[int]chan Entry
	nextSubID   int
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{subscribers: make(map[int]chan Entry)}
}

// Append adds an entry at the end of the log and notifies subscribers.
func (t *Transcript) Append(text string, role Role) Entry {
	return t.append(text, role, false)
}

// AppendFallback appends an assistant entry carrying substituted fallback text.
func (t *Transcript) AppendFallback(text string) Entry {
	return t.append(text, RoleAssistant, true)
}

func (t *Transcript) append(text string, role Role, fallback bool) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := Entry{
		ID:        uuid.NewString(),
		Seq:       len(t.entries) + 1,
		Role:      role,
		Text:      text,
		Fallback:  fallback,
		CreatedAt: time.Now().UTC(),
	}
	t.entries = append(t.entries, e)

	for _, ch := range t.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
	return e
}

// Entries returns a copy of every entry with Seq greater than after.
func (t *Transcript) Entries(after int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if after < 0 {
		after = 0
	}
	if after >= len(t.entries) {
		return []Entry{}
	}
	out := make([]Entry, len(t.entries)-after)
	copy(out, t.entries[after:])
	return out
}

// Last returns the newest entry.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Subscribe returns a channel receiving every entry appended from now on and
// a cancel func that closes it.
func (t *Transcript) Subscribe() (<-chan Entry, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSubID
	t.nextSubID++
	ch := make(chan Entry, subscriberBuffer)
	t.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			delete(t.subscribers, id)
			close(ch)
		})
	}
}
