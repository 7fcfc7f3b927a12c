package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/common/logger"
	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/service/community"
	"dice-drop-bot/internal/service/drops"
	"dice-drop-bot/internal/service/ledger"
)

// Outcome is the result of one claim signal.
type Outcome string

const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeRecorded       Outcome = "recorded"
	OutcomeWindowClosed   Outcome = "window_closed"
	OutcomeAlreadyClaimed Outcome = "already_claimed"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeAlreadyOwned   Outcome = "already_owned"
	OutcomeGranted        Outcome = "granted"
)

// Signal is a reaction added to a message.
type Signal struct {
	CommunityID string
	ChannelID   string
	MessageID   string
	MemberID    string
	IsBot       bool
	Emoji       string
	// Title of the drop embed on the message; empty when the message is not a drop.
	Title string
	// PostedAt is when the drop message was created; zero when unknown.
	PostedAt time.Time
}

// Rewards granted for a normal drop.
type Rewards struct {
	Coins  int64
	Points int64
}

// Resolver turns claim signals into ledger grants.
type Resolver struct {
	ledger    *ledger.Ledger
	registry  *community.Registry
	messenger messaging.Messenger
	rewards   Rewards
	log       zerolog.Logger
}

func NewResolver(l *ledger.Ledger, reg *community.Registry, m messaging.Messenger, rewards Rewards) *Resolver {
	return &Resolver{ledger: l, registry: reg, messenger: m, rewards: rewards, log: logger.Component("claims")}
}

// HandleClaim resolves one signal. Only OutcomeInvalid and persistence failures return an error.
func (r *Resolver) HandleClaim(ctx context.Context, sig Signal) (Outcome, error) {
	if sig.IsBot || sig.Emoji != messaging.ClaimEmoji || sig.Title == "" {
		return OutcomeIgnored, nil
	}

	st := r.registry.Get(sig.CommunityID)
	if drops.IsMegaTitle(sig.Title) {
		return r.recordMega(ctx, st, sig), nil
	}

	// claim marks from before a restart are gone
	if st.Claimed(sig.MessageID) || r.registry.PostedBeforeStart(sig.PostedAt) {
		return OutcomeAlreadyClaimed, nil
	}
	number, err := drops.ParseTitle(sig.Title)
	if err != nil {
		return OutcomeInvalid, apperrors.Wrap(err, apperrors.ErrCodeValidation, "unreadable drop title").
			WithDetail("title", sig.Title)
	}
	collectible, ok := r.ledger.Collectible(sig.CommunityID, number)
	if !ok {
		return OutcomeInvalid, apperrors.NewValidationError("title", fmt.Sprintf("Dice#%d is not in the catalog", number)).
			WithContext("community_id", sig.CommunityID)
	}
	if r.ledger.Owns(sig.CommunityID, sig.MemberID, number) {
		return OutcomeAlreadyOwned, nil
	}

	if !st.TryClaim(sig.MessageID) {
		return OutcomeAlreadyClaimed, nil
	}
	granted, err := r.ledger.Grant(ctx, sig.CommunityID, sig.MemberID, collectible, r.rewards.Coins, r.rewards.Points)
	if err != nil {
		st.ReleaseClaim(sig.MessageID)
		return "", err
	}
	if !granted {
		// lost a race with another grant of the same collectible to this member
		st.ReleaseClaim(sig.MessageID)
		return OutcomeAlreadyOwned, nil
	}

	text := fmt.Sprintf("🎉 Congratulations %s! You caught %s and earned %d coins + %d points!",
		messaging.MemberMention(sig.MemberID), collectible.Name, r.rewards.Coins, r.rewards.Points)
	if _, err := r.messenger.Send(ctx, sig.ChannelID, text); err != nil {
		r.log.Warn().Err(err).Str("channel_id", sig.ChannelID).Msg("Failed to announce claim")
	}

	r.log.Info().
		Str("community_id", sig.CommunityID).
		Str("member_id", sig.MemberID).
		Str("collectible", collectible.Name).
		Msg("Drop claimed")
	return OutcomeGranted, nil
}

// recordMega adds the member to the drop's collection window. A drop still
// being posted has no window yet, so the claim waits for it.
func (r *Resolver) recordMega(ctx context.Context, st *community.State, sig Signal) Outcome {
	if !st.Record(sig.MessageID, sig.MemberID) {
		if err := st.PostSettled(ctx); err != nil || !st.Record(sig.MessageID, sig.MemberID) {
			return OutcomeWindowClosed
		}
	}
	r.log.Debug().
		Str("community_id", sig.CommunityID).
		Str("message_id", sig.MessageID).
		Str("member_id", sig.MemberID).
		Msg("Mega claim recorded")
	return OutcomeRecorded
}
