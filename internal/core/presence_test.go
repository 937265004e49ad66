package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestPresenceMultiDevice(t *testing.T) {
	p := NewPresence()

	if !p.Bind("c1", "alice") {
		t.Fatal("first bind must report first connection")
	}
	if p.Bind("c2", "alice") {
		t.Fatal("second device must not report first connection")
	}
	if p.Bind("c2", "alice") {
		t.Fatal("repeated bind must not report first connection")
	}

	if got := p.ConnectionsFor("alice"); len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Fatalf("unexpected connections: %v", got)
	}
	if name, ok := p.Resolve("c2"); !ok || name != "alice" {
		t.Fatalf("resolve c2: %q %v", name, ok)
	}

	if user, offline := p.Unbind("c1"); user != "alice" || offline {
		t.Fatalf("unbind c1: user=%q offline=%v", user, offline)
	}
	if !p.Online("alice") {
		t.Fatal("alice must stay online with one device left")
	}
	if user, offline := p.Unbind("c2"); user != "alice" || !offline {
		t.Fatalf("unbind c2: user=%q offline=%v", user, offline)
	}
	if p.Online("alice") {
		t.Fatal("alice must be offline")
	}
	if _, ok := p.Resolve("c2"); ok {
		t.Fatal("c2 must be forgotten")
	}
}

func TestPresenceUnbindUnknown(t *testing.T) {
	p := NewPresence()

	if user, offline := p.Unbind("ghost"); user != "" || offline {
		t.Fatalf("unexpected result for unknown connection: %q %v", user, offline)
	}
	if got := p.ConnectionsFor("nobody"); len(got) != 0 {
		t.Fatalf("expected no connections, got %v", got)
	}
}

func TestPresenceRebindMovesConnection(t *testing.T) {
	p := NewPresence()
	p.Bind("c1", "alice")
	p.Bind("c1", "bob")

	if p.Online("alice") {
		t.Fatal("alice must be offline after her only connection moved")
	}
	if got := p.ConnectionsFor("bob"); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("unexpected connections for bob: %v", got)
	}
}

func TestPresenceConcurrentSameUser(t *testing.T) {
	p := NewPresence()
	const n = 100

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Bind(fmt.Sprintf("c%d", i), "alice")
		}(i)
	}
	wg.Wait()

	if got := len(p.ConnectionsFor("alice")); got != n {
		t.Fatalf("expected %d connections, got %d", n, got)
	}

	offline := make(chan bool, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, off := p.Unbind(fmt.Sprintf("c%d", i))
			offline <- off
		}(i)
	}
	wg.Wait()
	close(offline)

	count := 0
	for off := range offline {
		if off {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("exactly one unbind must report offline, got %d", count)
	}
}
