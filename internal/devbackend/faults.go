package devbackend

import (
	"net/http"
	"regexp"
	"strings"
	"sync"
)

// Call is one request served by the backend.
type Call struct {
	Method string
	Route  string
	Path   string
	Status int
}

type fault struct {
	method string
	route  string
	status int
}

// faults holds queued failures and the log of served calls.
type faults struct {
	mu      sync.Mutex
	pending []fault
	calls   []Call
}

var clientParam = regexp.MustCompile(`:([A-Za-z][A-Za-z0-9]*)`)

// normalizeRoute accepts both "/user/:id" and "/user/{id}" notations.
func normalizeRoute(route string) string {
	route = clientParam.ReplaceAllString(route, "{$1}")
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route
}

func (f *faults) add(method, route string, status int) {
	f.mu.Lock()
	f.pending = append(f.pending, fault{
		method: strings.ToUpper(method),
		route:  normalizeRoute(route),
		status: status,
	})
	f.mu.Unlock()
}

// take removes and returns the first queued failure matching the request.
func (f *faults) take(method, route string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, pending := range f.pending {
		if pending.method == method && pending.route == route {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return pending.status, true
		}
	}
	return 0, false
}

func (f *faults) record(call Call) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *faults) snapshot() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *faults) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func injectedMessage(status int) string {
	return "injected failure: " + http.StatusText(status)
}
