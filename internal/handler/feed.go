package handler

import (
	"context"
	"sync"

	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// Update is pushed to stream subscribers as the conversation progresses.
type Update struct {
	Event   string         `json:"-"`
	Session *model.Session `json:"session,omitempty"`
	Turn    *model.Turn    `json:"turn,omitempty"`
	Result  *model.Result  `json:"result,omitempty"`
}

const (
	updateStarted = "session_started"
	updateTurn    = "turn"
	updateEnded   = "session_ended"
)

// Snapshot is a point-in-time copy of the live conversation.
type Snapshot struct {
	Session *model.Session `json:"session,omitempty"`
	Status  model.Status   `json:"status"`
	Replies int            `json:"replies"`
	Turns   []model.Turn   `json:"turns,omitempty"`
	Result  *model.Result  `json:"result,omitempty"`
}

// Feed is an observer that keeps the live conversation for the HTTP API.
// It is written by the conversation goroutine and read by request handlers.
type Feed struct {
	mu      sync.RWMutex
	session *model.Session
	status  model.Status
	turns   []model.Turn
	result  *model.Result
	subs    map[chan Update]struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		status: model.StatusInit,
		subs:   make(map[chan Update]struct{}),
	}
}

// Name identifies the feed in logs and metrics.
func (f *Feed) Name() string {
	return "http"
}

// SessionStarted resets the feed for a new session.
func (f *Feed) SessionStarted(_ context.Context, session model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.session = &session
	f.status = model.StatusRunning
	f.turns = nil
	f.result = nil
	f.broadcast(Update{Event: updateStarted, Session: &session})
	return nil
}

// TurnAppended records the turn.
func (f *Feed) TurnAppended(_ context.Context, turn model.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.turns = append(f.turns, turn)
	f.broadcast(Update{Event: updateTurn, Turn: &turn})
	return nil
}

// SessionEnded records the terminal result.
func (f *Feed) SessionEnded(_ context.Context, result model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.status = result.Status
	f.result = &result
	f.broadcast(Update{Event: updateEnded, Result: &result})
	return nil
}

// Snapshot returns a copy of the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot()
}

// Subscribe returns the current state and a channel of later updates. The
// channel is closed by cancel. Slow subscribers miss updates rather than
// block the conversation.
func (f *Feed) Subscribe() (Snapshot, <-chan Update, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Update, 16)
	f.subs[ch] = struct{}{}

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
	}
	return f.snapshot(), ch, cancel
}

func (f *Feed) snapshot() Snapshot {
	s := Snapshot{
		Status: f.status,
		Turns:  make([]model.Turn, len(f.turns)),
	}
	copy(s.Turns, f.turns)
	for _, t := range f.turns {
		if t.Origin == model.OriginPersona {
			s.Replies++
		}
	}
	if f.session != nil {
		session := *f.session
		s.Session = &session
	}
	if f.result != nil {
		result := *f.result
		s.Result = &result
	}
	return s
}

func (f *Feed) broadcast(u Update) {
	for ch := range f.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
