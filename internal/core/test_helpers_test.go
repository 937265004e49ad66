package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/service/files"
	"github.com/vovakirdan/roomchat/internal/service/messages"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

// fakeAttachments knows the blobs added with add and records removals.
type fakeAttachments struct {
	mu    sync.Mutex
	blobs map[string]store.File
	urls  []string
}

func newFakeAttachments() *fakeAttachments {
	return &fakeAttachments{blobs: make(map[string]store.File)}
}

func (f *fakeAttachments) add(file store.File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[file.URL] = file
}

func (f *fakeAttachments) Resolve(_ context.Context, url, name string) (*store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.blobs[url]
	if !ok {
		return nil, files.ErrUnknownFile
	}
	if name != "" {
		file.Name = name
	}
	return &file, nil
}

func (f *fakeAttachments) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, url)
	f.urls = append(f.urls, url)
	return nil
}

func (f *fakeAttachments) removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type testHub struct {
	*Hub
	rooms *rooms.Service
	msgs  *messages.Service
	files *fakeAttachments
}

// newTestHub runs a hub over an in-memory store seeded with general and random.
func newTestHub(t testing.TB) *testHub {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	roomSvc := rooms.New(st)
	if _, err := roomSvc.Seed(context.Background(), []rooms.Seed{
		{Name: "general", Topic: "General Chat"},
		{Name: "random", Topic: "Anything goes"},
	}); err != nil {
		t.Fatalf("seed rooms: %v", err)
	}
	msgSvc := messages.New(st)
	attachments := newFakeAttachments()

	hub := NewHub(roomSvc, msgSvc, attachments, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		_ = st.Close()
	})

	return &testHub{Hub: hub, rooms: roomSvc, msgs: msgSvc, files: attachments}
}

// connect registers a client and, when name is set, identifies it.
func (th *testHub) connect(t testing.TB, id, name string) *Client {
	t.Helper()

	c := NewClient(id)
	if err := th.RegisterClient(c); err != nil {
		t.Fatalf("register client: %v", err)
	}
	if name != "" {
		c.Commands <- &Command{Kind: CommandSetIdentity, User: name}
	}
	return c
}

// joinRoom joins and waits for the confirmation.
func (th *testHub) joinRoom(t testing.TB, c *Client, room string) {
	t.Helper()

	c.Commands <- &Command{Kind: CommandJoinRoom, Room: room}
	ev := mustEvent(t, c.Events, EventRoomJoined)
	if ev.Room != room {
		t.Fatalf("expected to join %s, got %s", room, ev.Room)
	}
}

func mustEvent(t testing.TB, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustError(t testing.TB, ch <-chan *Event, code string) {
	t.Helper()

	ev := mustEvent(t, ch, EventError)
	if ev.Error == nil || ev.Error.Code != code {
		t.Fatalf("expected %s error, got %+v", code, ev.Error)
	}
}

// noEvent fails if an event of kind arrives within wait.
func noEvent(t testing.TB, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}
