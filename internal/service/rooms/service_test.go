package rooms

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return New(st)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Team Chat", "team-chat"},
		{"  General  ", "general"},
		{"a   b\tc", "a-b-c"},
		{"already-normal", "already-normal"},
		{"MiXeD", "mixed"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Fatalf("Normalize is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestCreateNormalizesAndRecordsCreator(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	room, err := svc.Create(ctx, "Team Chat", "", "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.Name != "team-chat" {
		t.Fatalf("expected team-chat, got %s", room.Name)
	}
	if room.Topic != "Chat about team-chat" {
		t.Fatalf("unexpected default topic %q", room.Topic)
	}

	found, err := svc.Find(ctx, "TEAM chat")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found.Participants) != 1 || found.Participants[0] != "alice" {
		t.Fatalf("expected creator as first participant, got %v", found.Participants)
	}
}

func TestCreateRejectsInvalidNames(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"", "ab", "  x ", strings.Repeat("a", MaxNameLength+1)} {
		if _, err := svc.Create(ctx, name, "", "alice"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Create(%q): expected ErrInvalidName, got %v", name, err)
		}
	}

	if _, err := svc.Create(ctx, strings.Repeat("a", MaxNameLength), "", "alice"); err != nil {
		t.Errorf("expected max-length name to be accepted, got %v", err)
	}
}

func TestCreateDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "general", "", "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, "General", "", "bob"); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("expected ErrRoomExists, got %v", err)
	}
}

func TestFindUnknownRoom(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Find(context.Background(), "ghost"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestListMostRecentlyActiveFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, name := range []string{"first", "second", "third"} {
		if _, err := svc.Create(ctx, name, "", "alice"); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if err := svc.Touch(ctx, "first"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, 0, len(list))
	for _, r := range list {
		got = append(got, r.Name)
	}
	want := []string{"first", "third", "second"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParticipantsGrowMonotonically(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "general", "", "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, u := range []string{"bob", "alice", "bob", "carol"} {
		if err := svc.AddParticipant(ctx, "general", u); err != nil {
			t.Fatalf("add participant: %v", err)
		}
	}

	room, err := svc.Find(ctx, "general")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if strings.Join(room.Participants, ",") != "alice,bob,carol" {
		t.Fatalf("unexpected participants %v", room.Participants)
	}
}

func TestSeedSkipsExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Seed(ctx, DefaultSeeds())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != len(DefaultSeeds()) {
		t.Fatalf("expected %d rooms created, got %d", len(DefaultSeeds()), created)
	}

	created, err = svc.Seed(ctx, DefaultSeeds())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no rooms on second seed, got %d", created)
	}

	room, err := svc.Find(ctx, "general")
	if err != nil {
		t.Fatalf("find general: %v", err)
	}
	if room.Topic != "General Chat" {
		t.Fatalf("unexpected topic %q", room.Topic)
	}
}
