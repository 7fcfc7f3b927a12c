package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/common/validation"
	dd "dice-drop-bot/internal/domain/dice"
	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/service/drops"
	"dice-drop-bot/internal/service/mega"
)

func (r *Router) register() {
	for _, c := range []*Command{
		{
			Name:        "mega",
			Description: fmt.Sprintf("Start a mega drop for %d coins", r.orchestrator.Cost()),
			handle:      r.handleMega,
		},
		{
			Name:        "addcoins",
			Description: "Give coins to a member",
			AdminOnly:   true,
			Options: []Option{
				{Name: "member", Description: "Member to credit", Kind: OptionUser, Required: true},
				{Name: "amount", Description: "Number of coins", Kind: OptionInteger, Required: true},
			},
			handle: r.handleAddCoins,
		},
		{
			Name:        "addimage",
			Description: "Add attached images to the dice catalog",
			AdminOnly:   true,
			Public:      true,
			Options: []Option{
				{Name: "image", Description: "Dice image", Kind: OptionAttachment, Required: true},
			},
			handle: r.handleAddImage,
		},
		{
			Name:        "drop",
			Description: "Drop a random dice now",
			handle:      r.handleDrop,
		},
		{
			Name:        "leaderboard",
			Description: "Top collectors in this server",
			handle:      r.handleLeaderboard,
		},
		{
			Name:        "global",
			Description: "Top collectors across all servers",
			handle:      r.handleGlobal,
		},
		{
			Name:        "setchannel",
			Description: "Set the channel for automatic drops",
			AdminOnly:   true,
			Options: []Option{
				{Name: "channel", Description: "Drop channel", Kind: OptionChannel, Required: true},
			},
			handle: r.handleSetChannel,
		},
		{
			Name:        "setrole",
			Description: "Set or clear the role pinged on every drop",
			AdminOnly:   true,
			Options: []Option{
				{Name: "role", Description: "Role to ping; omit to clear", Kind: OptionRole},
			},
			handle: r.handleSetRole,
		},
		{
			Name:        "balance",
			Description: "Show your coins, points and collection",
			handle:      r.handleBalance,
		},
	} {
		r.commands[c.Name] = c
	}
}

func (r *Router) handleMega(ctx context.Context, inv *Invocation) (Reply, error) {
	_, err := r.orchestrator.Run(ctx, mega.Request{
		CommunityID: inv.CommunityID,
		MemberID:    inv.ActorID,
		ChannelID:   inv.ChannelID,
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Content: "✅ Mega drop finished!"}, nil
}

func (r *Router) handleAddCoins(ctx context.Context, inv *Invocation) (Reply, error) {
	member := inv.Options["member"]
	if err := validation.ValidateSnowflake(member, "member"); err != nil {
		return Reply{}, apperrors.NewValidationError("member", err.Error())
	}
	amount, err := strconv.ParseInt(inv.Options["amount"], 10, 64)
	if err != nil {
		return Reply{}, apperrors.NewValidationError("amount", "Amount must be a whole number.")
	}
	if err := validation.ValidateCoinAmount(amount); err != nil {
		return Reply{}, apperrors.NewValidationError("amount", err.Error())
	}
	if _, err := r.ledger.Credit(ctx, inv.CommunityID, member, amount); err != nil {
		return Reply{}, err
	}
	name := messaging.NameOrMention(ctx, r.messenger, inv.CommunityID, member)
	return Reply{Content: fmt.Sprintf("Added %d coins to %s.", amount, name)}, nil
}

func (r *Router) handleAddImage(ctx context.Context, inv *Invocation) (Reply, error) {
	if len(inv.Attachments) == 0 {
		return Reply{Content: "❌ Attach at least one image."}, nil
	}
	for _, u := range inv.Attachments {
		if err := validation.ValidateImageURL(u); err != nil {
			return Reply{}, apperrors.NewValidationError("attachments", err.Error())
		}
	}
	first, last, err := r.ledger.AppendImages(ctx, inv.CommunityID, inv.Attachments)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("Added %s → %s", dd.CollectibleName(first), dd.CollectibleName(last))}, nil
}

func (r *Router) handleDrop(ctx context.Context, inv *Invocation) (Reply, error) {
	channel := r.ledger.DropChannel(inv.CommunityID)
	if channel == "" {
		channel = inv.ChannelID
	}
	_, err := r.engine.DropRandom(ctx, inv.CommunityID, channel)
	switch {
	case errors.Is(err, drops.ErrNoImages):
		return Reply{Content: "No images."}, nil
	case err != nil:
		return Reply{}, err
	}
	return Reply{Content: "Drop sent!"}, nil
}

func (r *Router) handleLeaderboard(ctx context.Context, inv *Invocation) (Reply, error) {
	board := r.ledger.Leaderboard(inv.CommunityID, r.settings.LeaderboardSize)
	if len(board) == 0 {
		return Reply{Content: "No data yet."}, nil
	}
	var b strings.Builder
	b.WriteString("**Leaderboard:**")
	for _, s := range board {
		name := messaging.NameOrMention(ctx, r.messenger, inv.CommunityID, s.MemberID)
		fmt.Fprintf(&b, "\n%d. %s — %d pts, %d coins, %d images", s.Rank, name, s.Points, s.Coins, s.Collected)
	}
	return Reply{Content: b.String()}, nil
}

func (r *Router) handleGlobal(ctx context.Context, inv *Invocation) (Reply, error) {
	ranking := r.ledger.GlobalRanking(r.settings.LeaderboardSize)
	if len(ranking) == 0 {
		return Reply{Content: "No data yet."}, nil
	}
	var b strings.Builder
	b.WriteString("**Global:**")
	for _, s := range ranking {
		name := messaging.NameOrMention(ctx, r.messenger, "", s.MemberID)
		fmt.Fprintf(&b, "\n%d. %s — %d images", s.Rank, name, s.Collected)
	}
	return Reply{Content: b.String()}, nil
}

func (r *Router) handleSetChannel(ctx context.Context, inv *Invocation) (Reply, error) {
	channel := inv.Options["channel"]
	if err := validation.ValidateSnowflake(channel, "channel"); err != nil {
		return Reply{}, apperrors.NewValidationError("channel", err.Error())
	}
	if err := r.ledger.SetDropChannel(ctx, inv.CommunityID, channel); err != nil {
		return Reply{}, err
	}
	return Reply{Content: fmt.Sprintf("✅ Drops will be posted in %s.", messaging.ChannelMention(channel))}, nil
}

func (r *Router) handleSetRole(ctx context.Context, inv *Invocation) (Reply, error) {
	role := inv.Options["role"]
	if role != "" {
		if err := validation.ValidateSnowflake(role, "role"); err != nil {
			return Reply{}, apperrors.NewValidationError("role", err.Error())
		}
	}
	if err := r.ledger.SetDropRole(ctx, inv.CommunityID, role); err != nil {
		return Reply{}, err
	}
	if role == "" {
		return Reply{Content: "✅ Drop role cleared."}, nil
	}
	return Reply{Content: fmt.Sprintf("✅ Drop role set to %s.", messaging.RoleMention(role))}, nil
}

func (r *Router) handleBalance(ctx context.Context, inv *Invocation) (Reply, error) {
	acc, _ := r.ledger.Account(inv.CommunityID, inv.ActorID)
	total := len(r.ledger.Catalog(inv.CommunityID))
	return Reply{Content: fmt.Sprintf("💰 %d coins, ⭐ %d points, 🎲 %d/%d dice collected.",
		acc.Coins, acc.Points, len(acc.Images), total)}, nil
}
