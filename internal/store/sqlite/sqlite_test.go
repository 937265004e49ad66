package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreateRoom(t *testing.T, s *SQLiteStore, name string, at time.Time) *store.Room {
	t.Helper()

	room := &store.Room{
		Name:         name,
		Topic:        "topic " + name,
		CreatedBy:    "alice",
		Participants: []string{"alice"},
		CreatedAt:    at,
		LastActivity: at,
	}
	if err := s.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("create room %s: %v", name, err)
	}
	return room
}

func TestCreateRoomDuplicateName(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	mustCreateRoom(t, s, "general", now)

	err := s.CreateRoom(context.Background(), &store.Room{Name: "general", CreatedAt: now, LastActivity: now})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestListRoomsOrderedByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mustCreateRoom(t, s, "alpha", base)
	mustCreateRoom(t, s, "bravo", base.Add(time.Minute))
	mustCreateRoom(t, s, "charlie", base.Add(2*time.Minute))

	if err := s.TouchRoom(ctx, "alpha", base.Add(time.Hour)); err != nil {
		t.Fatalf("touch room: %v", err)
	}

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}

	want := []string{"alpha", "charlie", "bravo"}
	if len(rooms) != len(want) {
		t.Fatalf("expected %d rooms, got %d", len(want), len(rooms))
	}
	for i, name := range want {
		if rooms[i].Name != name {
			t.Errorf("expected %s at index %d, got %s", name, i, rooms[i].Name)
		}
	}
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateRoom(t, s, "general", time.Now().UTC())

	for _, u := range []string{"bob", "alice", "bob"} {
		if err := s.AddParticipant(ctx, "general", u); err != nil {
			t.Fatalf("add participant %s: %v", u, err)
		}
	}

	room, err := s.GetRoomByName(ctx, "general")
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	if len(room.Participants) != 2 || room.Participants[0] != "alice" || room.Participants[1] != "bob" {
		t.Fatalf("unexpected participants: %v", room.Participants)
	}
}

func TestSaveMessageUnknownRoom(t *testing.T) {
	s := newTestStore(t)

	msg := &store.Message{RoomName: "ghost", Sender: "alice", Content: "hi", CreatedAt: time.Now().UTC()}
	if err := s.SaveMessage(context.Background(), msg); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessageLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateRoom(t, s, "general", time.Now().UTC())

	msg := &store.Message{
		RoomName:  "general",
		Sender:    "alice",
		Content:   "hello",
		File:      &store.File{URL: "http://x/files/a.png", Name: "a.png", Type: "image/png", Size: 42},
		ReadBy:    []string{"alice"},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveMessage(ctx, msg); err != nil {
		t.Fatalf("save message: %v", err)
	}
	if msg.ID == 0 || msg.RoomID == 0 {
		t.Fatalf("expected ids to be assigned, got %+v", msg)
	}

	added, err := s.AddReader(ctx, msg.ID, "bob")
	if err != nil || !added {
		t.Fatalf("add reader: added=%v err=%v", added, err)
	}
	added, err = s.AddReader(ctx, msg.ID, "bob")
	if err != nil || added {
		t.Fatalf("second add reader: added=%v err=%v", added, err)
	}
	if _, err := s.HideMessage(ctx, msg.ID, "carol"); err != nil {
		t.Fatalf("hide message: %v", err)
	}
	if err := s.MarkFileDeleted(ctx, msg.ID); err != nil {
		t.Fatalf("mark file deleted: %v", err)
	}

	got, err := s.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.RoomName != "general" || got.Sender != "alice" || got.Content != "hello" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if len(got.ReadBy) != 2 || got.ReadBy[0] != "alice" || got.ReadBy[1] != "bob" {
		t.Fatalf("unexpected readBy: %v", got.ReadBy)
	}
	if len(got.DeletedFor) != 1 || got.DeletedFor[0] != "carol" {
		t.Fatalf("unexpected deletedFor: %v", got.DeletedFor)
	}
	if got.File == nil || !got.File.Deleted || got.File.Size != 42 {
		t.Fatalf("unexpected file: %+v", got.File)
	}

	if err := s.DeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("delete message: %v", err)
	}
	if _, err := s.GetMessage(ctx, msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.AddReader(ctx, msg.ID, "dave"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for reader on deleted message, got %v", err)
	}
}

func TestListMessagesPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateRoom(t, s, "general", time.Now().UTC())
	mustCreateRoom(t, s, "random", time.Now().UTC())

	var ids []int64
	for i := range 5 {
		msg := &store.Message{
			RoomName:  "general",
			Sender:    "alice",
			Content:   string(rune('a' + i)),
			ReadBy:    []string{"alice"},
			CreatedAt: time.Now().UTC(),
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save message: %v", err)
		}
		ids = append(ids, msg.ID)
	}
	other := &store.Message{RoomName: "random", Sender: "bob", Content: "x", CreatedAt: time.Now().UTC()}
	if err := s.SaveMessage(ctx, other); err != nil {
		t.Fatalf("save message: %v", err)
	}

	latest, err := s.ListMessages(ctx, "general", 2, nil, "")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(latest) != 2 || latest[0].Content != "e" || latest[1].Content != "d" {
		t.Fatalf("unexpected latest page: %+v", latest)
	}
	if len(latest[0].ReadBy) != 1 || latest[0].ReadBy[0] != "alice" {
		t.Fatalf("expected readers to be loaded, got %v", latest[0].ReadBy)
	}

	before := ids[3]
	older, err := s.ListMessages(ctx, "general", 10, &before, "")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(older) != 3 || older[0].Content != "c" || older[2].Content != "a" {
		t.Fatalf("unexpected older page: %+v", older)
	}
}

func TestListMessagesSkipsHiddenBeforeLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateRoom(t, s, "general", time.Now().UTC())

	var ids []int64
	for i := range 4 {
		msg := &store.Message{RoomName: "general", Sender: "alice", Content: string(rune('a' + i)), CreatedAt: time.Now().UTC()}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save message: %v", err)
		}
		ids = append(ids, msg.ID)
	}
	// bob hides the two newest messages.
	for _, id := range ids[2:] {
		if _, err := s.HideMessage(ctx, id, "bob"); err != nil {
			t.Fatalf("hide message: %v", err)
		}
	}

	page, err := s.ListMessages(ctx, "general", 2, nil, "bob")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(page) != 2 || page[0].Content != "b" || page[1].Content != "a" {
		t.Fatalf("expected the two older visible messages, got %+v", page)
	}

	all, err := s.ListMessages(ctx, "general", 2, nil, "alice")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(all) != 2 || all[0].Content != "d" {
		t.Fatalf("hiding for bob must not affect alice, got %+v", all)
	}
}

func TestSaveMessageRejectsSharedFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateRoom(t, s, "general", time.Now().UTC())

	file := &store.File{URL: "http://chat.test/files/abc-report.pdf", Name: "report.pdf", Type: "application/pdf", Size: 10}
	first := &store.Message{RoomName: "general", Sender: "alice", File: file, CreatedAt: time.Now().UTC()}
	if err := s.SaveMessage(ctx, first); err != nil {
		t.Fatalf("save message: %v", err)
	}

	copied := *file
	second := &store.Message{RoomName: "general", Sender: "bob", File: &copied, CreatedAt: time.Now().UTC()}
	if err := s.SaveMessage(ctx, second); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for a reused file, got %v", err)
	}

	// Messages without files are unaffected by the index.
	for range 2 {
		plain := &store.Message{RoomName: "general", Sender: "bob", Content: "hi", CreatedAt: time.Now().UTC()}
		if err := s.SaveMessage(ctx, plain); err != nil {
			t.Fatalf("save plain message: %v", err)
		}
	}
}
