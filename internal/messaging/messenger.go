package messaging

import (
	"context"
	"fmt"
)

// ClaimEmoji is the reaction that claims a drop.
const ClaimEmoji = "🎲"

// Post is the rich message carrying a drop.
type Post struct {
	Title       string
	Description string
	ImageURL    string
}

// Messenger is the chat platform as seen by the drop services.
type Messenger interface {
	// Send posts plain text and returns the message id.
	Send(ctx context.Context, channelID, content string) (string, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
	Delete(ctx context.Context, channelID, messageID string) error
	// PublishDrop posts a drop embed and returns the message id.
	PublishDrop(ctx context.Context, channelID string, post Post) (string, error)
	React(ctx context.Context, channelID, messageID, emoji string) error
	// DisplayName resolves a member's name; communityID may be empty for a global lookup.
	DisplayName(ctx context.Context, communityID, memberID string) (string, error)
}

// MemberMention formats a user mention.
func MemberMention(memberID string) string {
	return fmt.Sprintf("<@%s>", memberID)
}

// RoleMention formats a role mention.
func RoleMention(roleID string) string {
	return fmt.Sprintf("<@&%s>", roleID)
}

// ChannelMention formats a channel link.
func ChannelMention(channelID string) string {
	return fmt.Sprintf("<#%s>", channelID)
}

// NameOrMention resolves a display name and falls back to a mention.
func NameOrMention(ctx context.Context, m Messenger, communityID, memberID string) string {
	name, err := m.DisplayName(ctx, communityID, memberID)
	if err != nil || name == "" {
		return MemberMention(memberID)
	}
	return name
}
