package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"dice-drop-bot/internal/common/cache"
	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/common/logger"
	"dice-drop-bot/internal/messaging"
)

// dropColor is the embed accent for drops.
const dropColor = 0xF1C40F

const nameTTL = 10 * time.Minute

// API is the subset of *discordgo.Session the client calls.
type API interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

var _ API = (*discordgo.Session)(nil)

// Client implements messaging.Messenger on top of the Discord REST API.
type Client struct {
	api   API
	names *cache.TTL[string]
}

var _ messaging.Messenger = (*Client)(nil)

func NewClient(api API) *Client {
	return &Client{api: api, names: cache.NewTTL[string](nameTTL)}
}

func (c *Client) Send(ctx context.Context, channelID, content string) (string, error) {
	msg, err := c.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: allowedMentions(content),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", apperrors.NewDeliveryError("send message", err).WithContext("channel_id", channelID)
	}
	return msg.ID, nil
}

func (c *Client) Edit(ctx context.Context, channelID, messageID, content string) error {
	if _, err := c.api.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx)); err != nil {
		return apperrors.NewDeliveryError("edit message", err).WithContext("message_id", messageID)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	if err := c.api.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return apperrors.NewDeliveryError("delete message", err).WithContext("message_id", messageID)
	}
	return nil
}

func (c *Client) PublishDrop(ctx context.Context, channelID string, post messaging.Post) (string, error) {
	msg, err := c.api.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       post.Title,
			Description: post.Description,
			Color:       dropColor,
			Image:       &discordgo.MessageEmbedImage{URL: post.ImageURL},
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", apperrors.NewDeliveryError("publish drop", err).WithContext("channel_id", channelID)
	}
	return msg.ID, nil
}

func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := c.api.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return apperrors.NewDeliveryError("add reaction", err).WithContext("message_id", messageID)
	}
	return nil
}

// DisplayName prefers the server nickname, then the global name, then the username.
// Resolved names are cached for nameTTL.
func (c *Client) DisplayName(ctx context.Context, communityID, memberID string) (string, error) {
	return c.names.GetOrSet(ctx, communityID+"/"+memberID, func(ctx context.Context) (string, error) {
		return c.lookupName(ctx, communityID, memberID)
	})
}

// SweepNames drops expired display names every interval until ctx is done.
func (c *Client) SweepNames(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepNames()
		}
	}
}

func (c *Client) sweepNames() int {
	n := c.names.Purge()
	if n > 0 {
		logger.Debug().Int("purged", n).Msg("Expired display names dropped")
	}
	return n
}

func (c *Client) lookupName(ctx context.Context, communityID, memberID string) (string, error) {
	if communityID != "" {
		member, err := c.api.GuildMember(communityID, memberID, discordgo.WithContext(ctx))
		if err == nil && member != nil {
			if member.Nick != "" {
				return member.Nick, nil
			}
			if member.User != nil {
				return userName(member.User), nil
			}
		}
	}
	user, err := c.api.User(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return "", apperrors.NewDeliveryError("resolve user", err).WithContext("member_id", memberID)
	}
	return userName(user), nil
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// allowedMentions lets role pings through and keeps everything else quiet.
func allowedMentions(content string) *discordgo.MessageAllowedMentions {
	am := &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}}
	if strings.Contains(content, "<@&") {
		am.Parse = append(am.Parse, discordgo.AllowedMentionTypeRoles)
	}
	return am
}
