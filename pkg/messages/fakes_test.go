package messages

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

type fakeWatcher struct {
	stopped int
	mu      *sync.Mutex
}

func (w *fakeWatcher) StopWatching() error {
	w.mu.Lock()
	w.stopped++
	w.mu.Unlock()
	return nil
}

type fakeWhisper struct {
	mu         sync.Mutex
	version    string
	versionErr error
	identities int
	posts      []WhisperPost
	postErr    error
	filters    [][]string
	cb         func(WhisperEnvelope, error)
	watcher    *fakeWatcher
	calls      int
}

func newFakeWhisper() *fakeWhisper {
	f := &fakeWhisper{version: "2.0"}
	f.watcher = &fakeWatcher{mu: &f.mu}
	return f
}

func (f *fakeWhisper) Version(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.version, f.versionErr
}

func (f *fakeWhisper) NewIdentity(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.identities++
	return "0x04identity", nil
}

func (f *fakeWhisper) Post(ctx context.Context, msg WhisperPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.posts = append(f.posts, msg)
	return f.postErr
}

func (f *fakeWhisper) Filter(ctx context.Context, topics []string, cb func(WhisperEnvelope, error)) (Watcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.filters = append(f.filters, topics)
	f.cb = cb
	return f.watcher, nil
}

func (f *fakeWhisper) deliver(env WhisperEnvelope, err error) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb(env, err)
}

func (f *fakeWhisper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeOrbit struct {
	mu         sync.Mutex
	username   string
	joined     []string
	sent       map[string][]json.RawMessage
	handlers   map[int]func(channel, ref string)
	nextID     int
	posts      map[string]*Post
	getPostErr error
	calls      int
}

func newFakeOrbit() *fakeOrbit {
	return &fakeOrbit{
		sent:     make(map[string][]json.RawMessage),
		handlers: make(map[int]func(string, string)),
		posts:    make(map[string]*Post),
	}
}

func (f *fakeOrbit) Connect(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.username = username
	return nil
}

func (f *fakeOrbit) Join(ctx context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.joined = append(f.joined, channel)
	return nil
}

func (f *fakeOrbit) Send(ctx context.Context, channel string, content json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sent[channel] = append(f.sent[channel], content)
	return nil
}

func (f *fakeOrbit) OnMessage(fn func(channel, ref string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}
}

func (f *fakeOrbit) GetPost(ctx context.Context, ref string) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.getPostErr != nil {
		return nil, f.getPostErr
	}
	post, ok := f.posts[ref]
	if !ok {
		return nil, errors.New("post not found")
	}
	return post, nil
}

func (f *fakeOrbit) publish(channel, ref string, content string) {
	f.mu.Lock()
	f.posts[ref] = &Post{
		Content: json.RawMessage(content),
		From:    "alice",
		Channel: channel,
		Time:    time.Unix(1700000000, 0),
	}
	handlers := make([]func(string, string), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(channel, ref)
	}
}

func (f *fakeOrbit) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeOrbit) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
