package history

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// slot is what a URL backend stores in the platform state slot.
type slot struct {
	Key   string
	State any
}

type codec interface {
	encode(path string) string
	decode(parts URLParts) string
}

type browserCodec struct {
	base string
}

func (c browserCodec) encode(path string) string {
	return c.base + path
}

func (c browserCodec) decode(parts URLParts) string {
	path := parts.Path
	if c.base != "" && strings.HasPrefix(path, c.base) {
		path = path[len(c.base):]
	}
	if path == "" {
		path = "/"
	}
	return path + parts.Search + parts.Hash
}

// hashCodec keeps the document URL fixed and writes the app path after "#".
type hashCodec struct {
	base string
	doc  string
}

func (c hashCodec) encode(path string) string {
	return c.doc + "#" + c.base + path
}

func (c hashCodec) decode(parts URLParts) string {
	path := strings.TrimPrefix(parts.Hash, "#")
	if c.base != "" && strings.HasPrefix(path, c.base) {
		path = path[len(c.base):]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func cleanBasename(base string) string {
	base = strings.TrimRight(base, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}

// URL is a backend persisted to a Platform. The platform subscription is
// attached while at least one listener or prompt is installed.
type URL struct {
	platform Platform
	codec    codec
	gate     gate
	keys     KeyFunc
	logger   *slog.Logger

	mu           sync.Mutex
	current      Entry
	allKeys      []string
	forceNextPop bool
	subscribers  int
	detach       func()
}

var _ History = (*URL)(nil)

// NewBrowser creates a backend whose address path is the app path.
func NewBrowser(platform Platform, opts ...Option) *URL {
	cfg := newConfig(opts)
	return newURL(platform, browserCodec{base: cleanBasename(cfg.basename)}, cfg)
}

// NewHash creates a backend whose URL fragment is the app path. A fragment
// without a leading slash is rewritten in place.
func NewHash(platform Platform, opts ...Option) *URL {
	cfg := newConfig(opts)
	parts := platform.URLParts()
	return newURL(platform, hashCodec{base: cleanBasename(cfg.basename), doc: parts.Path + parts.Search}, cfg)
}

func newURL(platform Platform, c codec, cfg config) *URL {
	confirm := cfg.confirm
	if confirm == nil {
		confirm = platform.ConfirmLeave
	}
	u := &URL{
		platform: platform,
		codec:    c,
		gate:     gate{logger: cfg.logger, confirm: confirm},
		keys:     cfg.keys,
		logger:   cfg.logger,
	}
	u.current = u.read(platform.State())
	u.allKeys = []string{u.current.Key}
	return u
}

// read builds the entry the platform shows. An entry without a key is
// stamped with a fresh one.
func (u *URL) read(state any) Entry {
	path := u.codec.decode(u.platform.URLParts())
	if s, ok := state.(slot); ok && s.Key != "" {
		return Entry{Key: s.Key, Path: path, State: s.State}
	}
	entry := Entry{Key: u.keys(), Path: path}
	u.platform.ReplaceEntry(u.codec.encode(path), slot{Key: entry.Key})
	return entry
}

func (u *URL) Current() Entry {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.current
}

func (u *URL) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.allKeys)
}

func (u *URL) Index() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.indexOf(u.current.Key)
}

func (u *URL) indexOf(key string) int {
	return slices.Index(u.allKeys, key)
}

func (u *URL) Push(ctx context.Context, path string, state any) error {
	if !u.Confirm(ctx, Entry{Path: path, State: state}, ActionPush) {
		return ErrBlocked
	}
	u.Apply(ActionPush, path, state)
	return nil
}

func (u *URL) Replace(ctx context.Context, path string, state any) error {
	if !u.Confirm(ctx, Entry{Path: path, State: state}, ActionReplace) {
		return ErrBlocked
	}
	u.Apply(ActionReplace, path, state)
	return nil
}

func (u *URL) CanGo(n int) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	next := u.indexOf(u.current.Key) + n
	return n != 0 && next >= 0 && next < len(u.allKeys)
}

// Go asks the platform to move. While subscribed, the move is confirmed
// and reported when the platform delivers it.
func (u *URL) Go(_ context.Context, n int) error {
	if !u.CanGo(n) {
		return nil
	}
	u.platform.GoDelta(n)

	u.mu.Lock()
	subscribed := u.subscribers > 0
	u.mu.Unlock()
	if !subscribed {
		entry := u.read(u.platform.State())
		u.mu.Lock()
		u.current = entry
		u.mu.Unlock()
	}
	return nil
}

func (u *URL) Listen(fn Listener) func() {
	unlisten := u.gate.appendListener(fn)
	u.retain()
	var once sync.Once
	return func() {
		once.Do(func() {
			unlisten()
			u.release()
		})
	}
}

func (u *URL) Block(prompt Prompt) func() {
	unblock := u.gate.setPrompt(prompt)
	u.retain()
	var once sync.Once
	return func() {
		once.Do(func() {
			unblock()
			u.release()
		})
	}
}

func (u *URL) retain() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.subscribers++
	if u.subscribers == 1 {
		u.detach = u.platform.OnChange(u.handleChange)
	}
}

func (u *URL) release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.subscribers--
	if u.subscribers == 0 && u.detach != nil {
		u.detach()
		u.detach = nil
		u.forceNextPop = false
	}
}

func (u *URL) handleChange(state any) {
	u.mu.Lock()
	if u.forceNextPop {
		u.forceNextPop = false
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()

	entry := u.read(state)
	if !u.gate.confirmTransition(context.Background(), entry, ActionPop) {
		u.revertPop(entry)
		return
	}

	u.mu.Lock()
	if u.indexOf(entry.Key) < 0 {
		// Entered by the user: it replaced the forward stack.
		i := u.indexOf(u.current.Key)
		u.allKeys = append(u.allKeys[:i+1:i+1], entry.Key)
	}
	u.current = entry
	u.mu.Unlock()

	u.gate.notify(entry, ActionPop)
}

// revertPop moves the platform back from the refused entry to current.
func (u *URL) revertPop(refused Entry) {
	u.mu.Lock()
	toIndex := max(u.indexOf(u.current.Key), 0)
	fromIndex := max(u.indexOf(refused.Key), 0)
	delta := toIndex - fromIndex
	if delta != 0 {
		u.forceNextPop = true
	}
	u.mu.Unlock()

	if delta != 0 {
		u.platform.GoDelta(delta)
	}
}

func (u *URL) Confirm(ctx context.Context, to Entry, action Action) bool {
	return u.gate.confirmTransition(ctx, to, action)
}

func (u *URL) Apply(action Action, path string, state any) Entry {
	entry := u.write(action, path, state)
	u.gate.notify(entry, action)
	return entry
}

func (u *URL) write(action Action, path string, state any) Entry {
	entry := Entry{Key: u.keys(), Path: path, State: state}
	href := u.codec.encode(path)

	u.mu.Lock()
	defer u.mu.Unlock()
	i := u.indexOf(u.current.Key)
	switch action {
	case ActionReplace:
		u.platform.ReplaceEntry(href, slot{Key: entry.Key, State: state})
		if i >= 0 {
			u.allKeys[i] = entry.Key
		} else {
			u.allKeys = append(u.allKeys, entry.Key)
		}
	default:
		u.platform.PushEntry(href, slot{Key: entry.Key, State: state})
		u.allKeys = append(u.allKeys[:i+1:i+1], entry.Key)
	}
	u.current = entry
	return entry
}

// Revert undoes a pop that was reported but refused downstream.
func (u *URL) Revert(from Entry) {
	u.mu.Lock()
	fromIndex := u.indexOf(from.Key)
	if fromIndex < 0 {
		u.mu.Unlock()
		u.logger.Warn("cannot revert to an unknown history entry", "key", from.Key, "path", from.Path)
		return
	}
	delta := fromIndex - max(u.indexOf(u.current.Key), 0)
	u.current = from
	if delta != 0 && u.subscribers > 0 {
		u.forceNextPop = true
	}
	u.mu.Unlock()

	if delta != 0 {
		u.platform.GoDelta(delta)
	}
}

func (u *URL) Ensure(path string, push bool) {
	if u.Current().Path == path {
		return
	}
	if push {
		u.write(ActionPush, path, nil)
	} else {
		u.write(ActionReplace, path, nil)
	}
}

func (u *URL) CreateHref(path string) string {
	return u.codec.encode(path)
}
