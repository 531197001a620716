package history

import (
	"context"
	"strings"
	"sync"
)

// URLParts is the address of the platform's current entry. Search keeps its
// leading "?" and Hash its leading "#".
type URLParts struct {
	Path   string
	Search string
	Hash   string
}

// String joins the parts back into a URL.
func (u URLParts) String() string {
	return u.Path + u.Search + u.Hash
}

// SplitURL splits a URL the way a browser address bar does.
func SplitURL(url string) URLParts {
	var parts URLParts
	if i := strings.IndexByte(url, '#'); i >= 0 {
		parts.Hash = url[i:]
		url = url[:i]
	}
	if i := strings.IndexByte(url, '?'); i >= 0 {
		parts.Search = url[i:]
		url = url[:i]
	}
	parts.Path = url
	return parts
}

// Platform is the substrate URL backends persist to: an address bar with a
// native session stack and one state slot per entry.
type Platform interface {
	// URLParts returns the address of the current native entry.
	URLParts() URLParts
	// State returns the state slot of the current native entry.
	State() any
	// PushEntry appends a native entry after the current one.
	PushEntry(url string, state any)
	// ReplaceEntry overwrites the current native entry.
	ReplaceEntry(url string, state any)
	// GoDelta moves through the native stack. The move is reported
	// through OnChange, never synchronously to the caller.
	GoDelta(n int)
	// OnChange subscribes to back/forward moves and user-entered URLs.
	OnChange(cb func(state any)) (detach func())
	// ConfirmLeave asks the user whether to leave the current entry.
	ConfirmLeave(ctx context.Context, message string) bool
}

type simEntry struct {
	url   string
	state any
}

// SimulatedPlatform is an in-process Platform. Moves are delivered to
// subscribers synchronously from GoDelta and Navigate.
type SimulatedPlatform struct {
	mu      sync.Mutex
	entries []simEntry
	index   int
	subs    map[int]func(any)
	nextSub int
	confirm func(message string) bool
	asked   []string
}

var _ Platform = (*SimulatedPlatform)(nil)

// NewSimulatedPlatform starts a platform showing url with an empty state
// slot. Leave confirmations are accepted until SetConfirm says otherwise.
func NewSimulatedPlatform(url string) *SimulatedPlatform {
	if url == "" {
		url = "/"
	}
	return &SimulatedPlatform{
		entries: []simEntry{{url: url}},
		subs:    make(map[int]func(any)),
	}
}

func (p *SimulatedPlatform) URLParts() URLParts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return SplitURL(p.entries[p.index].url)
}

func (p *SimulatedPlatform) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[p.index].state
}

func (p *SimulatedPlatform) PushEntry(url string, state any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries[:p.index+1:p.index+1], simEntry{url: url, state: state})
	p.index++
}

func (p *SimulatedPlatform) ReplaceEntry(url string, state any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[p.index] = simEntry{url: url, state: state}
}

func (p *SimulatedPlatform) GoDelta(n int) {
	p.mu.Lock()
	next := p.index + n
	if n == 0 || next < 0 || next >= len(p.entries) {
		p.mu.Unlock()
		return
	}
	p.index = next
	state := p.entries[next].state
	p.mu.Unlock()

	p.fire(state)
}

// Navigate simulates the user typing url into the address bar.
func (p *SimulatedPlatform) Navigate(url string) {
	p.PushEntry(url, nil)
	p.fire(nil)
}

func (p *SimulatedPlatform) fire(state any) {
	p.mu.Lock()
	subs := make([]func(any), 0, len(p.subs))
	for id := 0; id < p.nextSub; id++ {
		if cb, ok := p.subs[id]; ok {
			subs = append(subs, cb)
		}
	}
	p.mu.Unlock()

	for _, cb := range subs {
		cb(state)
	}
}

func (p *SimulatedPlatform) OnChange(cb func(state any)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = cb
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *SimulatedPlatform) ConfirmLeave(_ context.Context, message string) bool {
	p.mu.Lock()
	p.asked = append(p.asked, message)
	confirm := p.confirm
	p.mu.Unlock()

	if confirm == nil {
		return true
	}
	return confirm(message)
}

// SetConfirm sets the answer to leave confirmations.
func (p *SimulatedPlatform) SetConfirm(fn func(message string) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirm = fn
}

// URL returns the address of the current native entry.
func (p *SimulatedPlatform) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[p.index].url
}

// Len returns the size of the native stack.
func (p *SimulatedPlatform) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Index returns the native cursor.
func (p *SimulatedPlatform) Index() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Subscribers returns the number of attached OnChange callbacks.
func (p *SimulatedPlatform) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Asked returns every message passed to ConfirmLeave.
func (p *SimulatedPlatform) Asked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.asked...)
}
