// Package messages holds the short text messages that visitors post
// to the display.
package messages

import (
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	AliasCommand = "/alias "

	// Older messages are dropped beyond this.
	DefaultCapacity = 500
)

var ErrEmptyMessage = errors.New("empty message")

type Message struct {
	ReceivedAt time.Time `json:"received_at"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`

	ip string
}

type Board struct {
	Capacity int

	mutex    sync.Mutex
	messages []Message
	aliases  map[string]string
}

func NewBoard() *Board {
	return &Board{
		Capacity: DefaultCapacity,
		aliases:  map[string]string{},
	}
}

// Posts text on behalf of the sender at ip. Text starting with
// "/alias " instead sets the name displayed for that sender.
func (b *Board) Post(ip string, text string, at time.Time) error {
	if text == "" {
		return ErrEmptyMessage
	}

	if strings.HasPrefix(text, AliasCommand) {
		b.Alias(ip, strings.TrimPrefix(text, AliasCommand))
		return nil
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.messages = append(b.messages, Message{
		ReceivedAt: at,
		Text:       text,
		ip:         ip,
	})
	if b.Capacity > 0 && len(b.messages) > b.Capacity {
		b.messages = append([]Message{}, b.messages[len(b.messages)-b.Capacity:]...)
	}

	return nil
}

// Sets the display name for a sender. Applies retroactively to
// messages already posted.
func (b *Board) Alias(ip string, name string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.aliases == nil {
		b.aliases = map[string]string{}
	}
	b.aliases[ip] = name
}

// The n most recent messages, oldest first, with authors resolved.
func (b *Board) Recent(n int) []Message {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	start := 0
	if n >= 0 && len(b.messages) > n {
		start = len(b.messages) - n
	}

	out := make([]Message, 0, len(b.messages)-start)
	for _, m := range b.messages[start:] {
		m.Author = b.author(m.ip)
		out = append(out, m)
	}

	return out
}

func (b *Board) author(ip string) string {
	if alias, found := b.aliases[ip]; found {
		return alias
	}
	// IPv4 mapped IPv6
	return strings.TrimPrefix(ip, "::ffff:")
}
