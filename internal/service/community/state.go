package community

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
)

// State is the process-local, per-community drop state. It is never persisted
// and starts empty on every process start.
type State struct {
	ID string

	mu          sync.Mutex
	publishing  bool
	megaRunning bool
	claimed     map[string]struct{}
	windows     map[string]*window
	// posting is closed once the mega drop being posted has its window open.
	posting chan struct{}
}

type window struct {
	claimants map[string]struct{}
}

func newState(id string) *State {
	return &State{
		ID:      id,
		claimed: map[string]struct{}{},
		windows: map[string]*window{},
	}
}

// TryBeginPublish sets the publish flag; false when a publish is already in flight.
func (s *State) TryBeginPublish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishing {
		return false
	}
	s.publishing = true
	return true
}

func (s *State) EndPublish() {
	s.mu.Lock()
	s.publishing = false
	s.mu.Unlock()
}

func (s *State) Publishing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishing
}

// TryBeginMega sets the mega flag; false when a mega drop is already running.
func (s *State) TryBeginMega() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.megaRunning {
		return false
	}
	s.megaRunning = true
	return true
}

func (s *State) EndMega() {
	s.mu.Lock()
	s.megaRunning = false
	s.mu.Unlock()
}

func (s *State) MegaRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.megaRunning
}

// TryClaim marks a normal drop message as claimed. Only the first caller gets true.
func (s *State) TryClaim(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claimed[messageID]; ok {
		return false
	}
	s.claimed[messageID] = struct{}{}
	return true
}

// ReleaseClaim undoes TryClaim after a failed grant.
func (s *State) ReleaseClaim(messageID string) {
	s.mu.Lock()
	delete(s.claimed, messageID)
	s.mu.Unlock()
}

func (s *State) Claimed(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claimed[messageID]
	return ok
}

// OpenWindow starts collecting claimants for a mega drop message.
func (s *State) OpenWindow(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[messageID]; !ok {
		s.windows[messageID] = &window{claimants: map[string]struct{}{}}
	}
}

// Record adds a claimant to an open window. False when no window is open for the message.
func (s *State) Record(messageID, memberID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[messageID]
	if !ok {
		return false
	}
	w.claimants[memberID] = struct{}{}
	return true
}

// BeginPost marks a mega drop as being posted. Claims on mega drops wait in
// PostSettled until EndPost.
func (s *State) BeginPost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.posting == nil {
		s.posting = make(chan struct{})
	}
}

func (s *State) EndPost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.posting != nil {
		close(s.posting)
		s.posting = nil
	}
}

// PostSettled blocks until no mega drop is being posted.
func (s *State) PostSettled(ctx context.Context) error {
	s.mu.Lock()
	ch := s.posting
	s.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WindowOpen reports whether the message is collecting claimants.
func (s *State) WindowOpen(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[messageID]
	return ok
}

// CloseWindow stops collection and returns the claimants sorted by id.
func (s *State) CloseWindow(messageID string) []string {
	s.mu.Lock()
	w, ok := s.windows[messageID]
	delete(s.windows, messageID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	out := make([]string, 0, len(w.claimants))
	for id := range w.claimants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Registry hands out one State per community. Claim marks do not survive a
// restart, so drops posted before Started are treated as claimed.
type Registry struct {
	states  *xsync.MapOf[string, *State]
	started time.Time
}

func NewRegistry() *Registry {
	return &Registry{states: xsync.NewMapOf[*State](), started: time.Now()}
}

// Started is the time the registry was created.
func (r *Registry) Started() time.Time {
	return r.started
}

// PostedBeforeStart reports whether a message posted at t predates the registry.
// A zero t is unknown and never predates it.
func (r *Registry) PostedBeforeStart(t time.Time) bool {
	return !t.IsZero() && t.Before(r.started)
}

// Get returns the community's state, creating it on first use.
func (r *Registry) Get(communityID string) *State {
	if st, ok := r.states.Load(communityID); ok {
		return st
	}
	st, _ := r.states.LoadOrStore(communityID, newState(communityID))
	return st
}

// Busy lists communities with a publish or mega drop in flight.
func (r *Registry) Busy() []string {
	var out []string
	r.states.Range(func(id string, st *State) bool {
		if st.Publishing() || st.MegaRunning() {
			out = append(out, id)
		}
		return true
	})
	sort.Strings(out)
	return out
}
