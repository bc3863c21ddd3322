package focus

import "sync"

// Screen is an application-level visibility event bus for one screen.
type Screen struct {
	name string

	mu          sync.Mutex
	focused     bool
	unmounted   bool
	nextID      int
	subscribers map[int]func()
}

// NewScreen returns an unfocused screen.
func NewScreen(name string) *Screen {
	return &Screen{name: name, subscribers: make(map[int]func())}
}

// Name returns the screen's name.
func (s *Screen) Name() string {
	return s.name
}

// Subscribe implements Source.
func (s *Screen) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unmounted || fn == nil {
		return func() {}
	}

	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Focus marks the screen visible. Subscribers are notified only when the
// screen was not already focused.
func (s *Screen) Focus() {
	s.mu.Lock()
	if s.unmounted || s.focused {
		s.mu.Unlock()
		return
	}
	s.focused = true
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Blur marks the screen hidden, e.g. when a child screen is pushed over it.
func (s *Screen) Blur() {
	s.mu.Lock()
	s.focused = false
	s.mu.Unlock()
}

// Focused reports whether the screen is visible.
func (s *Screen) Focused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

// Unmount tears the screen down. Later events are ignored.
func (s *Screen) Unmount() {
	s.mu.Lock()
	s.unmounted = true
	s.focused = false
	s.subscribers = make(map[int]func())
	s.mu.Unlock()
}

// Subscribers reports how many subscriptions are live.
func (s *Screen) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
