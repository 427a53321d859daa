// Package auth tracks the signed-in user and notifies subscribers when it
// changes.
package auth

import "sync"

type User struct {
	ID    string
	Email string
	Name  string
	Token string
}

func (u User) Display() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}

// Listener receives the current user, or ok=false after sign-out.
type Listener func(u User, ok bool)

type Provider interface {
	CurrentUser() (User, bool)
	Subscribe(fn Listener) (unsubscribe func())
}

// Memory is an in-process Provider. Listeners run outside the provider's
// lock, so they may call back into it.
type Memory struct {
	mu        sync.Mutex
	user      *User
	listeners map[int]Listener
	next      int
}

func NewMemory() *Memory {
	return &Memory{listeners: make(map[int]Listener)}
}

func (m *Memory) CurrentUser() (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// Token returns the signed-in user's bearer token, if any.
func (m *Memory) Token() string {
	u, _ := m.CurrentUser()
	return u.Token
}

func (m *Memory) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Subscribers reports the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *Memory) SignIn(u User) {
	m.mu.Lock()
	m.user = &u
	m.mu.Unlock()
	m.notify(u, true)
}

func (m *Memory) SignOut() {
	m.mu.Lock()
	wasIn := m.user != nil
	m.user = nil
	m.mu.Unlock()
	if wasIn {
		m.notify(User{}, false)
	}
}

func (m *Memory) notify(u User, ok bool) {
	m.mu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(u, ok)
	}
}
