// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/simscript/internal/core"
)

// ChatKind identifies how far a chat message carries.
type ChatKind uint8

// Chat kinds.
const (
	ChatWhisper ChatKind = iota
	ChatSay
	ChatShout
	ChatRegion
	ChatOwner
)

// Audible ranges in metres. Region-wide chat has no range limit.
const (
	WhisperRange = 10.0
	SayRange     = 20.0
	ShoutRange   = 100.0
)

// Well-known channels.
const (
	PublicChannel int32 = 0
	DebugChannel  int32 = 2147483647
)

func (k ChatKind) String() string {
	switch k {
	case ChatWhisper:
		return "whisper"
	case ChatSay:
		return "say"
	case ChatShout:
		return "shout"
	case ChatRegion:
		return "region"
	case ChatOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Range returns the audible distance for the kind; 0 means unlimited.
func (k ChatKind) Range() float64 {
	switch k {
	case ChatWhisper:
		return WhisperRange
	case ChatSay:
		return SayRange
	case ChatShout:
		return ShoutRange
	default:
		return 0
	}
}

// Chat is one message spoken into the region.
type Chat struct {
	Kind       ChatKind
	Channel    int32
	SenderName string
	SenderKey  ulid.ULID
	// SenderPart is the part that spoke; scripts in it never hear themselves.
	SenderPart ulid.ULID
	// Target restricts owner-say chat to one agent.
	Target  ulid.ULID
	Message string
	Origin  core.Vector
}

// Sink receives every chat synchronously, in publish order.
type Sink interface {
	MatchAndDeliver(chat Chat) int
}

// ChatBus distributes chat to the channel table and to observers.
type ChatBus struct {
	mu    sync.RWMutex
	sinks []Sink
	subs  []chan Chat
}

// NewChatBus creates a new chat bus.
func NewChatBus() *ChatBus {
	return &ChatBus{}
}

// Attach adds a synchronous sink.
func (b *ChatBus) Attach(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Subscribe creates a channel for observing chat.
func (b *ChatBus) Subscribe() chan Chat {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Chat, 100)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes an observer channel and closes it.
func (b *ChatBus) Unsubscribe(ch chan Chat) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish delivers chat to every sink and observer. It returns the number of
// script events the sinks produced.
func (b *ChatBus) Publish(chat Chat) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	if chat.Kind != ChatOwner {
		for _, sink := range b.sinks {
			delivered += sink.MatchAndDeliver(chat)
		}
	}

	for _, ch := range b.subs {
		select {
		case ch <- chat:
		default:
			// Slow observers lose lines; the speaker never waits.
			slog.Warn("chat dropped: observer buffer full",
				"channel", chat.Channel,
				"sender", chat.SenderName,
				"kind", chat.Kind.String(),
			)
		}
	}
	return delivered
}
