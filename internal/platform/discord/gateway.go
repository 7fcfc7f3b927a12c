package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"dice-drop-bot/internal/bot"
	"dice-drop-bot/internal/common/logger"
	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/service/claims"
)

const prefixAddImage = "!addimage"

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

// NewSession creates an unopened bot session with the intents the gateway needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = intents
	return s, nil
}

// Gateway routes Discord events to the command router and the claim resolver.
type Gateway struct {
	ctx      context.Context
	session  *discordgo.Session
	client   *Client
	router   *bot.Router
	resolver *claims.Resolver
	appID    string
	guildID  string
	log      zerolog.Logger
}

// NewGateway registers event handlers on session. Handlers run under ctx, so
// long commands such as mega drops end when the application shuts down.
func NewGateway(ctx context.Context, session *discordgo.Session, router *bot.Router, resolver *claims.Resolver, appID, guildID string) *Gateway {
	g := &Gateway{
		ctx:      ctx,
		session:  session,
		client:   NewClient(session),
		router:   router,
		resolver: resolver,
		appID:    appID,
		guildID:  guildID,
		log:      logger.Component("discord"),
	}
	session.AddHandler(g.onReady)
	session.AddHandler(g.onInteractionCreate)
	session.AddHandler(g.onReactionAdd)
	session.AddHandler(g.onMessageCreate)
	return g
}

func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

func (g *Gateway) Close() error {
	return g.session.Close()
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord session ready")

	appID := g.appID
	if appID == "" {
		appID = r.User.ID
	}
	cmds := applicationCommands(g.router.Commands())
	if _, err := s.ApplicationCommandBulkOverwrite(appID, g.guildID, cmds, discordgo.WithContext(g.ctx)); err != nil {
		g.log.Error().Err(err).Msg("Failed to register slash commands")
		return
	}
	g.log.Info().Int("commands", len(cmds)).Str("guild_id", g.guildID).Msg("Slash commands registered")
}

func (g *Gateway) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	inv := invocationFromInteraction(i)
	cmd, ok := g.router.Lookup(inv.Command)

	var flags discordgo.MessageFlags
	if !ok || !cmd.Public {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	}, discordgo.WithContext(g.ctx))
	if err != nil {
		g.log.Error().Err(err).Str("command", inv.Command).Msg("Failed to acknowledge interaction")
		return
	}

	reply := g.router.Dispatch(g.ctx, inv)
	content := reply.Content
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		g.log.Error().Err(err).Str("command", inv.Command).Msg("Failed to send command reply")
	}
}

func (g *Gateway) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" {
		return
	}
	botID := ""
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	if r.UserID == botID || r.Emoji.Name != messaging.ClaimEmoji {
		return
	}

	msg, err := s.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(g.ctx))
	if err != nil {
		g.log.Warn().Err(err).Str("message_id", r.MessageID).Msg("Failed to fetch reacted message")
		return
	}

	sig := signalFromReaction(r, msg, botID)
	outcome, err := g.resolver.HandleClaim(g.ctx, sig)
	if err != nil {
		g.log.Warn().Err(err).Str("message_id", r.MessageID).Str("outcome", string(outcome)).Msg("Claim failed")
		return
	}
	g.log.Debug().Str("message_id", r.MessageID).Str("member_id", r.UserID).Str("outcome", string(outcome)).Msg("Claim handled")
}

func (g *Gateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" || !strings.HasPrefix(m.Content, prefixAddImage) {
		return
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		g.log.Warn().Err(err).Str("member_id", m.Author.ID).Msg("Failed to resolve permissions")
	}
	inv := invocationFromMessage(m, perms)
	reply := g.router.Dispatch(g.ctx, inv)
	if _, err := g.client.Send(g.ctx, m.ChannelID, reply.Content); err != nil {
		g.log.Error().Err(err).Msg("Failed to send command reply")
	}
}

func applicationCommands(cmds []bot.Command) []*discordgo.ApplicationCommand {
	admin := int64(discordgo.PermissionAdministrator)
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		ac := &discordgo.ApplicationCommand{Name: c.Name, Description: c.Description}
		if c.AdminOnly {
			ac.DefaultMemberPermissions = &admin
		}
		for _, o := range c.Options {
			ac.Options = append(ac.Options, &discordgo.ApplicationCommandOption{
				Type:        optionType(o.Kind),
				Name:        o.Name,
				Description: o.Description,
				Required:    o.Required,
			})
		}
		out = append(out, ac)
	}
	return out
}

func optionType(k bot.OptionKind) discordgo.ApplicationCommandOptionType {
	switch k {
	case bot.OptionInteger:
		return discordgo.ApplicationCommandOptionInteger
	case bot.OptionUser:
		return discordgo.ApplicationCommandOptionUser
	case bot.OptionChannel:
		return discordgo.ApplicationCommandOptionChannel
	case bot.OptionRole:
		return discordgo.ApplicationCommandOptionRole
	case bot.OptionAttachment:
		return discordgo.ApplicationCommandOptionAttachment
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

func invocationFromInteraction(i *discordgo.InteractionCreate) bot.Invocation {
	data := i.ApplicationCommandData()
	inv := bot.Invocation{
		Command:     data.Name,
		CommunityID: i.GuildID,
		ChannelID:   i.ChannelID,
		Options:     map[string]string{},
	}
	if i.Member != nil {
		inv.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		if i.Member.User != nil {
			inv.ActorID = i.Member.User.ID
		}
	} else if i.User != nil {
		inv.ActorID = i.User.ID
	}

	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionInteger:
			inv.Options[opt.Name] = fmt.Sprint(opt.IntValue())
		case discordgo.ApplicationCommandOptionAttachment:
			id := fmt.Sprint(opt.Value)
			if data.Resolved != nil {
				if a, ok := data.Resolved.Attachments[id]; ok {
					inv.Attachments = append(inv.Attachments, a.URL)
				}
			}
		default:
			inv.Options[opt.Name] = fmt.Sprint(opt.Value)
		}
	}
	return inv
}

func invocationFromMessage(m *discordgo.MessageCreate, perms int64) bot.Invocation {
	inv := bot.Invocation{
		Command:     strings.TrimPrefix(prefixAddImage, "!"),
		CommunityID: m.GuildID,
		ChannelID:   m.ChannelID,
		ActorID:     m.Author.ID,
		IsAdmin:     perms&discordgo.PermissionAdministrator != 0,
		Options:     map[string]string{},
	}
	for _, a := range m.Attachments {
		inv.Attachments = append(inv.Attachments, a.URL)
	}
	return inv
}

// signalFromReaction keeps the embed title only for messages the bot posted.
func signalFromReaction(r *discordgo.MessageReactionAdd, msg *discordgo.Message, botID string) claims.Signal {
	sig := claims.Signal{
		CommunityID: r.GuildID,
		ChannelID:   r.ChannelID,
		MessageID:   r.MessageID,
		MemberID:    r.UserID,
		IsBot:       r.UserID == botID,
		Emoji:       r.Emoji.Name,
	}
	if posted, err := discordgo.SnowflakeTimestamp(r.MessageID); err == nil {
		sig.PostedAt = posted
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		sig.IsBot = true
	}
	if msg != nil && msg.Author != nil && msg.Author.ID == botID && len(msg.Embeds) > 0 {
		sig.Title = msg.Embeds[0].Title
	}
	return sig
}
