package core

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
)

func benchmarkTopicBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	sender := NewClient("sender", "sender", "")
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandJoin, Topic: "bench"}
	go func() {
		for range sender.Events {
		}
	}()

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient("c"+strconv.Itoa(i), "client", "")
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandJoin, Topic: "bench"}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	payload := json.RawMessage(`{"content":"payload"}`)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind:    CommandBroadcast,
			Topic:   "bench",
			Event:   "message",
			Payload: payload,
		}
		for ev := range target.Events {
			if ev.Kind == EventBroadcast {
				break
			}
		}
	}
}

func BenchmarkTopicBroadcast_10(b *testing.B)  { benchmarkTopicBroadcast(b, 10) }
func BenchmarkTopicBroadcast_100(b *testing.B) { benchmarkTopicBroadcast(b, 100) }
func BenchmarkTopicBroadcast_500(b *testing.B) { benchmarkTopicBroadcast(b, 500) }
