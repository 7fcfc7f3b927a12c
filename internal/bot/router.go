package bot

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/common/logger"
	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/service/drops"
	"dice-drop-bot/internal/service/ledger"
	"dice-drop-bot/internal/service/mega"
)

// OptionKind is the type of a command argument.
type OptionKind int

const (
	OptionString OptionKind = iota
	OptionInteger
	OptionUser
	OptionChannel
	OptionRole
	OptionAttachment
)

// Option describes one command argument.
type Option struct {
	Name        string
	Description string
	Kind        OptionKind
	Required    bool
}

// Command is one entry of the command table.
type Command struct {
	Name        string
	Description string
	AdminOnly   bool
	// Public replies are visible to the whole channel.
	Public  bool
	Options []Option
	handle  func(ctx context.Context, inv *Invocation) (Reply, error)
}

// Invocation is a platform-neutral command call.
type Invocation struct {
	Command     string
	CommunityID string
	ChannelID   string
	ActorID     string
	IsAdmin     bool
	// Options by name; user, channel and role options carry ids.
	Options     map[string]string
	Attachments []string
}

// Reply is what the invoker sees.
type Reply struct {
	Content string
	Public  bool
}

// Settings for command output.
type Settings struct {
	LeaderboardSize int
}

// Router dispatches invocations to command handlers.
type Router struct {
	ledger       *ledger.Ledger
	engine       *drops.Engine
	orchestrator *mega.Orchestrator
	messenger    messaging.Messenger
	settings     Settings
	commands     map[string]*Command
	log          zerolog.Logger
}

func NewRouter(l *ledger.Ledger, engine *drops.Engine, orchestrator *mega.Orchestrator, m messaging.Messenger, settings Settings) *Router {
	r := &Router{
		ledger:       l,
		engine:       engine,
		orchestrator: orchestrator,
		messenger:    m,
		settings:     settings,
		commands:     map[string]*Command{},
		log:          logger.Component("bot"),
	}
	r.register()
	return r
}

// Commands lists the command table sorted by name.
func (r *Router) Commands() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named command.
func (r *Router) Lookup(name string) (Command, bool) {
	c, ok := r.commands[name]
	if !ok {
		return Command{}, false
	}
	return *c, true
}

// Dispatch runs the command. Permission is checked before the handler runs.
func (r *Router) Dispatch(ctx context.Context, inv Invocation) Reply {
	cmd, ok := r.commands[inv.Command]
	if !ok {
		return Reply{Content: "❌ Unknown command."}
	}
	if cmd.AdminOnly && !inv.IsAdmin {
		err := apperrors.NewPermissionDeniedError(inv.Command)
		r.log.Warn().Err(err).Str("actor_id", inv.ActorID).Str("community_id", inv.CommunityID).Msg("Command rejected")
		return Reply{Content: "❌ You need administrator permission to use this command."}
	}

	reply, err := cmd.handle(ctx, &inv)
	if err != nil {
		return r.errorReply(inv, err)
	}
	if cmd.Public {
		reply.Public = true
	}
	return reply
}

func (r *Router) errorReply(inv Invocation, err error) Reply {
	switch {
	case errors.Is(err, mega.ErrInsufficientCoins):
		return Reply{Content: "❌ Not enough coins!"}
	case errors.Is(err, mega.ErrAlreadyRunning):
		return Reply{Content: "❌ A mega drop is already running!"}
	case errors.Is(err, drops.ErrNoImages):
		return Reply{Content: "❌ No images."}
	case errors.Is(err, drops.ErrPublishInFlight):
		return Reply{Content: "⏳ A drop is already on its way."}
	}

	log := r.log.With().
		Str("command", inv.Command).
		Str("community_id", inv.CommunityID).
		Str("actor_id", inv.ActorID).
		Logger()
	if appErr, ok := apperrors.AsAppError(err); ok && appErr.IsUserFacing() {
		log.Debug().Err(err).Msg("Command failed")
		return Reply{Content: "❌ " + appErr.Message}
	}
	log.Error().Err(err).Msg("Command failed")
	return Reply{Content: "❌ Something went wrong, please try again."}
}
