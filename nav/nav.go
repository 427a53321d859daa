// Package nav defines the screens the app can route to.
package nav

import (
	"strconv"
	"sync"

	"skinscan/auth"
)

const (
	Scan    = "scan"
	Chapter = "chapter"
	SignIn  = "signin"
)

type Router interface {
	NavigateTo(dest string, params map[string]string)
}

type RouterFunc func(dest string, params map[string]string)

func (f RouterFunc) NavigateTo(dest string, params map[string]string) { f(dest, params) }

// ToChapter routes to the chapter screen for n.
func ToChapter(r Router, n int) {
	r.NavigateTo(Chapter, map[string]string{"chapter": strconv.Itoa(n)})
}

// Path renders a destination as a route path, e.g. /chapters/3.
func Path(dest string, params map[string]string) string {
	switch dest {
	case Chapter:
		return "/chapters/" + params["chapter"]
	case SignIn:
		return "/signin"
	default:
		return "/" + dest
	}
}

// Guard admits entry to a protected screen when a user is signed in and
// otherwise redirects to sign-in.
func Guard(p auth.Provider, r Router, dest string) bool {
	if _, ok := p.CurrentUser(); ok {
		return true
	}
	r.NavigateTo(SignIn, map[string]string{"next": dest})
	return false
}

type Call struct {
	Dest   string
	Params map[string]string
}

// Recorder is a Router that remembers every call.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) NavigateTo(dest string, params map[string]string) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Dest: dest, Params: params})
	r.mu.Unlock()
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}
