package testutil

import (
	"context"
	"fmt"
	"sync"

	"dice-drop-bot/internal/messaging"
)

// Message is one message recorded by MockMessenger.
type Message struct {
	ID        string
	ChannelID string
	Content   string
	Post      *messaging.Post
	Edits     []string
	Reactions []string
	Deleted   bool
}

// MockMessenger records every call. The On* hooks run before recording and
// their error, when non-nil, is returned instead.
type MockMessenger struct {
	OnSend          func(ctx context.Context, channelID, content string) error
	OnEdit          func(ctx context.Context, channelID, messageID, content string) error
	OnDelete        func(ctx context.Context, channelID, messageID string) error
	OnPublishDrop   func(ctx context.Context, channelID string, post messaging.Post) error
	OnReact         func(ctx context.Context, channelID, messageID, emoji string) error
	DisplayNameFunc func(ctx context.Context, communityID, memberID string) (string, error)

	mu       sync.Mutex
	seq      int
	messages []*Message
}

var _ messaging.Messenger = (*MockMessenger)(nil)

func (m *MockMessenger) record(msg *Message) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	msg.ID = fmt.Sprintf("msg-%d", m.seq)
	m.messages = append(m.messages, msg)
	return msg.ID
}

func (m *MockMessenger) find(messageID string) (*Message, error) {
	for _, msg := range m.messages {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("unknown message %s", messageID)
}

func (m *MockMessenger) Send(ctx context.Context, channelID, content string) (string, error) {
	if m.OnSend != nil {
		if err := m.OnSend(ctx, channelID, content); err != nil {
			return "", err
		}
	}
	return m.record(&Message{ChannelID: channelID, Content: content}), nil
}

func (m *MockMessenger) Edit(ctx context.Context, channelID, messageID, content string) error {
	if m.OnEdit != nil {
		if err := m.OnEdit(ctx, channelID, messageID, content); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.find(messageID)
	if err != nil {
		return err
	}
	msg.Edits = append(msg.Edits, content)
	msg.Content = content
	return nil
}

func (m *MockMessenger) Delete(ctx context.Context, channelID, messageID string) error {
	if m.OnDelete != nil {
		if err := m.OnDelete(ctx, channelID, messageID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.find(messageID)
	if err != nil {
		return err
	}
	msg.Deleted = true
	return nil
}

func (m *MockMessenger) PublishDrop(ctx context.Context, channelID string, post messaging.Post) (string, error) {
	if m.OnPublishDrop != nil {
		if err := m.OnPublishDrop(ctx, channelID, post); err != nil {
			return "", err
		}
	}
	p := post
	return m.record(&Message{ChannelID: channelID, Post: &p}), nil
}

func (m *MockMessenger) React(ctx context.Context, channelID, messageID, emoji string) error {
	if m.OnReact != nil {
		if err := m.OnReact(ctx, channelID, messageID, emoji); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, err := m.find(messageID)
	if err != nil {
		return err
	}
	msg.Reactions = append(msg.Reactions, emoji)
	return nil
}

func (m *MockMessenger) DisplayName(ctx context.Context, communityID, memberID string) (string, error) {
	if m.DisplayNameFunc != nil {
		return m.DisplayNameFunc(ctx, communityID, memberID)
	}
	return "user-" + memberID, nil
}

// Messages returns copies of all recorded messages in order.
func (m *MockMessenger) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, len(m.messages))
	for _, msg := range m.messages {
		cp := *msg
		cp.Edits = append([]string(nil), msg.Edits...)
		cp.Reactions = append([]string(nil), msg.Reactions...)
		out = append(out, cp)
	}
	return out
}

// Drops returns recorded drop posts.
func (m *MockMessenger) Drops() []Message {
	var out []Message
	for _, msg := range m.Messages() {
		if msg.Post != nil {
			out = append(out, msg)
		}
	}
	return out
}

// Texts returns the content of recorded plain messages.
func (m *MockMessenger) Texts() []string {
	var out []string
	for _, msg := range m.Messages() {
		if msg.Post == nil {
			out = append(out, msg.Content)
		}
	}
	return out
}
