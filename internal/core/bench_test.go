package core

import (
	"fmt"
	"testing"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	th := newTestHub(b)

	sender := th.connect(b, "sender", "sender")
	th.joinRoom(b, sender, "general")

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := th.connect(b, fmt.Sprintf("c%d", i), fmt.Sprintf("client%d", i))
		th.joinRoom(b, c, "general")
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid dropped events.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	go func() {
		for range sender.Events {
		}
	}()
	for len(target.Events) > 0 {
		<-target.Events
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind:    CommandSendRoomMessage,
			Message: Message{Text: "payload"},
		}
		mustEvent(b, target.Events, EventRoomMessage)
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
