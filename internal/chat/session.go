package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/gateway"
)

// State is the session's position in the send/cancel state machine.
// Cancelled, Completed and Errored are passed through on the way back
// to Idle and are reported via StateChanged events.
type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateCancelled
	StateCompleted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome is how a Send ended
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeRejected
	OutcomeCompleted
	OutcomeCancelled
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeErrored:
		return "errored"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is returned by Send
type Result struct {
	Outcome Outcome
	Reply   *Message // agent reply when Completed
	Err     error    // cause when Errored
}

// EventType identifies a session event
type EventType int

const (
	EventMessageAdded EventType = iota
	EventMessageRemoved
	EventStateChanged
)

// Event is delivered to observers registered with Subscribe
type Event struct {
	Type    EventType
	Message Message // MessageAdded, MessageRemoved
	State   State   // StateChanged
}

// Chatter is the part of the gateway client a session needs
type Chatter interface {
	Chat(ctx context.Context, req gateway.ChatRequest) (*gateway.ChatResponse, error)
}

// Option configures a Session
type Option func(*Session)

// WithAugmenter sets the initial augmentation strategy
func WithAugmenter(a Augmenter) Option {
	return func(s *Session) {
		s.augmenter = a
	}
}

// WithClock overrides the time source used for message timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// requestToken identifies one outstanding request. Results are applied
// only while the token is still the session's pending token.
type requestToken struct {
	seq           uint64
	cancel        context.CancelFunc
	placeholderID string
}

// Session owns one conversation with the agent. It is safe for concurrent
// use; at most one request is outstanding at any time.
type Session struct {
	client Chatter
	now    func() time.Time

	mu             sync.Mutex
	augmenter      Augmenter
	messages       []Message
	conversationID string
	state          State
	lastOutcome    Outcome
	pending        *requestToken
	seq            uint64
	observers      []func(Event)
	queue          []Event

	// dispatchMu serializes observer delivery so events arrive in order
	dispatchMu sync.Mutex
}

// NewSession creates an idle session
func NewSession(client Chatter, opts ...Option) *Session {
	s := &Session{
		client:    client,
		now:       time.Now,
		augmenter: NoAugmentation{},
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer. Observers run outside the session lock
// but must not call Send, Cancel or Reset synchronously.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// SetAugmenter replaces the augmentation strategy for subsequent sends
func (s *Session) SetAugmenter(a Augmenter) {
	if a == nil {
		a = NoAugmentation{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.augmenter = a
}

// Send submits one user turn and blocks until it resolves. A request that
// is still outstanding is cancelled first. Empty text is rejected without
// any state change.
func (s *Session) Send(ctx context.Context, text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Outcome: OutcomeRejected}
	}

	s.mu.Lock()
	s.cancelLocked()

	s.appendLocked(newMessage(RoleUser, KindText, trimmed, s.now()))
	placeholder := newMessage(RoleAgent, KindPending, PendingText, s.now())
	s.appendLocked(placeholder)

	reqCtx, cancel := context.WithCancel(ctx)
	s.seq++
	tok := &requestToken{seq: s.seq, cancel: cancel, placeholderID: placeholder.ID}
	s.pending = tok
	s.setStateLocked(StateAwaiting)

	req := gateway.ChatRequest{Message: s.augmenter.Augment(trimmed)}
	if s.conversationID != "" {
		id := s.conversationID
		req.ConversationID = &id
	}
	s.mu.Unlock()
	s.flush()

	internal.Logger().Debug("chat request", "seq", tok.seq, "conversation", req.ConversationID != nil)
	resp, err := s.client.Chat(reqCtx, req)

	s.mu.Lock()
	if s.pending != tok {
		// Superseded by Cancel, Reset or a newer Send.
		s.mu.Unlock()
		internal.Logger().Debug("discarding stale chat result", "seq", tok.seq)
		return Result{Outcome: OutcomeCancelled}
	}
	s.pending = nil
	cancel()
	s.removeLocked(tok.placeholderID)

	var res Result
	switch {
	case err == nil:
		if resp.ConversationID != "" {
			s.conversationID = resp.ConversationID
		}
		reply := newMessage(RoleAgent, KindText, resp.Response, s.now())
		s.appendLocked(reply)
		res = Result{Outcome: OutcomeCompleted, Reply: &reply}
		s.finishLocked(StateCompleted, OutcomeCompleted)
	case gateway.IsCanceled(err) || ctx.Err() != nil:
		s.appendLocked(newMessage(RoleAgent, KindStopped, StoppedText, s.now()))
		res = Result{Outcome: OutcomeCancelled}
		s.finishLocked(StateCancelled, OutcomeCancelled)
	default:
		internal.Logger().Warn("chat request failed", "err", err)
		s.appendLocked(newMessage(RoleAgent, KindError, ErrorText(err), s.now()))
		res = Result{Outcome: OutcomeErrored, Err: err}
		s.finishLocked(StateErrored, OutcomeErrored)
	}
	s.mu.Unlock()
	s.flush()
	return res
}

// Cancel stops the outstanding request. It returns false when there was
// nothing to cancel, so repeated calls are no-ops.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	ok := s.cancelLocked()
	s.mu.Unlock()
	s.flush()
	return ok
}

// Reset cancels any outstanding request and starts a new conversation
func (s *Session) Reset() {
	s.mu.Lock()
	if s.pending != nil {
		s.pending.cancel()
		s.pending = nil
		s.setStateLocked(StateIdle)
	}
	for _, m := range s.messages {
		s.queue = append(s.queue, Event{Type: EventMessageRemoved, Message: m})
	}
	s.messages = nil
	s.conversationID = ""
	s.lastOutcome = OutcomeNone
	s.mu.Unlock()
	s.flush()
}

// Messages returns a copy of the transcript, placeholder included
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ConversationID returns the server-assigned id, or "" before the first reply
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// State returns StateIdle or StateAwaiting
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastOutcome returns how the most recent request ended
func (s *Session) LastOutcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome
}

// Transcript returns the settled messages for export
func (s *Session) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Transcript{ConversationID: s.conversationID, ExportedAt: s.now()}
	for _, m := range s.messages {
		if m.Kind != KindPending {
			t.Messages = append(t.Messages, m)
		}
	}
	return t
}

// ErrorText is the transcript text for a failed request
func ErrorText(err error) string {
	return fmt.Sprintf("Sorry, an error occurred: %v", err)
}

func (s *Session) cancelLocked() bool {
	tok := s.pending
	if tok == nil {
		return false
	}
	s.pending = nil
	tok.cancel()
	s.removeLocked(tok.placeholderID)
	s.appendLocked(newMessage(RoleAgent, KindStopped, StoppedText, s.now()))
	s.finishLocked(StateCancelled, OutcomeCancelled)
	return true
}

func (s *Session) finishLocked(terminal State, outcome Outcome) {
	s.lastOutcome = outcome
	s.setStateLocked(terminal)
	s.setStateLocked(StateIdle)
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	s.queue = append(s.queue, Event{Type: EventStateChanged, State: st})
}

func (s *Session) appendLocked(m Message) {
	s.messages = append(s.messages, m)
	s.queue = append(s.queue, Event{Type: EventMessageAdded, Message: m})
}

func (s *Session) removeLocked(id string) {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			s.queue = append(s.queue, Event{Type: EventMessageRemoved, Message: m})
			return
		}
	}
}

// flush delivers queued events outside the session lock
func (s *Session) flush() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()
	for {
		s.mu.Lock()
		events := s.queue
		s.queue = nil
		observers := s.observers
		s.mu.Unlock()
		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			for _, fn := range observers {
				fn(ev)
			}
		}
	}
}
