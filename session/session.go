package session

import (
	"errors"
	"sync"
	"time"

	"github.com/SaiNageswarS/chat-boot/llm"
	"github.com/SaiNageswarS/chat-boot/memory"
)

// ErrBusy is returned when a message is submitted while the previous one is
// still awaiting its completion.
var ErrBusy = errors.New("a reply is still being generated")

type State int

const (
	StateIdle State = iota
	StateAwaiting
)

// Session is one browser's chat: its history, its current settings and the
// last inline error. All access goes through its methods.
type Session struct {
	ID string

	mu         sync.Mutex
	history    *memory.Conversation
	settings   Settings
	state      State
	lastError  string
	lastActive time.Time
}

func New(id string, settings Settings, now time.Time) *Session {
	return &Session{
		ID:         id,
		history:    memory.NewConversation(id),
		settings:   settings,
		lastActive: now,
	}
}

// Begin moves the session to awaiting and returns a snapshot of the history
// to build the prompt from.
func (s *Session) Begin(settings Settings, now time.Time) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaiting {
		return nil, ErrBusy
	}

	s.state = StateAwaiting
	s.settings = settings
	s.lastError = ""
	s.lastActive = now
	return s.history.All(), nil
}

// Commit records a successful round trip and returns the session to idle.
func (s *Session) Commit(userText, reply string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.AddRoundTrip(userText, reply)
	s.state = StateIdle
	s.lastActive = now
}

// Fail returns the session to idle with an inline error; history is untouched.
func (s *Session) Fail(message string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateIdle
	s.lastError = message
	s.lastActive = now
}

// Reset clears the history. It is refused while a completion is in flight so
// the pending reply cannot land in a cleared conversation.
func (s *Session) Reset(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaiting {
		return ErrBusy
	}

	s.history.Clear()
	s.lastError = ""
	s.lastActive = now
	return nil
}

// SetError records an inline error without a round trip, e.g. a rejected input.
func (s *Session) SetError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = message
}

// TakeError returns the pending inline error and clears it, so it is shown once.
func (s *Session) TakeError() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.lastError
	s.lastError = ""
	return msg
}

func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.All()
}

func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.settings
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaiting {
		return 0
	}
	return now.Sub(s.lastActive)
}
