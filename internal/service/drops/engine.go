package drops

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/common/logger"
	dd "dice-drop-bot/internal/domain/dice"
	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/service/community"
	"dice-drop-bot/internal/service/ledger"
	"dice-drop-bot/internal/utils/random"
	"dice-drop-bot/internal/utils/timeutil"
)

var (
	// ErrPublishInFlight is wrapped when the community is already publishing a drop.
	ErrPublishInFlight = errors.New("drop publish already in flight")
	// ErrNoImages is wrapped when the community catalog is empty.
	ErrNoImages = errors.New("no images")
)

// Drop is a published, claimable message. Never persisted.
type Drop struct {
	ID          string
	CommunityID string
	ChannelID   string
	MessageID   string
	Collectible dd.Collectible
	Kind        Kind
	PublishedAt time.Time
}

// Engine publishes drops, one at a time per community.
type Engine struct {
	ledger    *ledger.Ledger
	registry  *community.Registry
	messenger messaging.Messenger
	hold      time.Duration
	log       zerolog.Logger
}

func NewEngine(l *ledger.Ledger, reg *community.Registry, m messaging.Messenger, hold time.Duration) *Engine {
	return &Engine{ledger: l, registry: reg, messenger: m, hold: hold, log: logger.Component("drops")}
}

// Pick draws a collectible uniformly from the community catalog.
func (e *Engine) Pick(communityID string) (dd.Collectible, error) {
	c, err := random.Pick(e.ledger.Catalog(communityID))
	if errors.Is(err, random.ErrEmpty) {
		return dd.Collectible{}, apperrors.Wrap(ErrNoImages, apperrors.ErrCodeValidation, "No images.")
	}
	if err != nil {
		return dd.Collectible{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "pick collectible")
	}
	return c, nil
}

// DropRandom picks a collectible and publishes it as a normal drop.
func (e *Engine) DropRandom(ctx context.Context, communityID, channelID string) (*Drop, error) {
	c, err := e.Pick(communityID)
	if err != nil {
		return nil, err
	}
	return e.Publish(ctx, communityID, channelID, c, KindNormal)
}

// Publish posts the drop while holding the community publish flag. Mega drops
// get an open collection window before the claim reaction is attached; claims
// that race the post wait for it.
func (e *Engine) Publish(ctx context.Context, communityID, channelID string, c dd.Collectible, kind Kind) (*Drop, error) {
	st := e.registry.Get(communityID)
	if !st.TryBeginPublish() {
		return nil, apperrors.NewBusyError("drop publish", ErrPublishInFlight)
	}
	defer st.EndPublish()

	log := e.log.With().Str("community_id", communityID).Str("channel_id", channelID).Logger()

	if role := e.ledger.DropRole(communityID); role != "" {
		if _, err := e.messenger.Send(ctx, channelID, messaging.RoleMention(role)); err != nil {
			log.Warn().Err(err).Str("role_id", role).Msg("Failed to ping drop role")
		}
	}

	post := messaging.Post{
		Title:       Title(c, kind),
		Description: description(kind),
		ImageURL:    c.URL,
	}
	if kind == KindMega {
		st.BeginPost()
		defer st.EndPost()
	}
	messageID, err := e.messenger.PublishDrop(ctx, channelID, post)
	if err != nil {
		return nil, apperrors.NewDeliveryError("publish drop", err).
			WithContext("community_id", communityID)
	}

	drop := &Drop{
		ID:          uuid.NewString(),
		CommunityID: communityID,
		ChannelID:   channelID,
		MessageID:   messageID,
		Collectible: c,
		Kind:        kind,
		PublishedAt: time.Now().UTC(),
	}
	if kind == KindMega {
		st.OpenWindow(messageID)
		st.EndPost()
	}

	if err := e.messenger.React(ctx, channelID, messageID, messaging.ClaimEmoji); err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("Failed to attach claim reaction")
	}

	log.Info().
		Str("drop_id", drop.ID).
		Str("message_id", messageID).
		Str("collectible", c.Name).
		Str("kind", string(kind)).
		Msg("Drop published")

	_ = timeutil.Sleep(ctx, e.hold)
	return drop, nil
}
