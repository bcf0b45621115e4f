package state

import (
	"sort"
	"sync"

	"github.com/forPelevin/replaycast/internal/types"
)

// Store is an in-memory, process-local state container. Subscribers run after
// every dispatch, outside the store lock, in subscription order.
type Store struct {
	mu   sync.Mutex
	st   types.State
	next int
	subs map[int]func(types.State)
}

func New(initial types.State) *Store {
	return &Store{st: initial, subs: make(map[int]func(types.State))}
}

func (s *Store) Dispatch(a types.Action) {
	s.mu.Lock()
	s.st = reduce(s.st, a)
	st := s.st
	subs := s.subscribers()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func (s *Store) State() types.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (s *Store) Subscribe(fn func(types.State)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) subscribers() []func(types.State) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(types.State), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func reduce(st types.State, a types.Action) types.State {
	switch x := a.(type) {
	case types.SetSpokenLanguageText:
		st.SpokenLanguageText = x.Text
		st.Dispatched++
	case types.SetSpokenToSigned:
		st.SpokenToSigned = x.Value
	}
	return st
}

// Select reads one projection of the current state.
func Select[T any](r interface{ State() types.State }, sel func(types.State) T) T {
	return sel(r.State())
}

func SpokenToSigned(st types.State) bool { return st.SpokenToSigned }
