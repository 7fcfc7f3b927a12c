package mega

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/common/logger"
	dd "dice-drop-bot/internal/domain/dice"
	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/service/community"
	"dice-drop-bot/internal/service/drops"
	"dice-drop-bot/internal/service/ledger"
	"dice-drop-bot/internal/utils/timeutil"
)

const minRetryDelay = 10 * time.Millisecond

var (
	ErrInsufficientCoins = errors.New("not enough coins")
	ErrAlreadyRunning    = errors.New("mega drop already running")
)

// Settings tunes one mega drop run.
type Settings struct {
	Cost      int64
	Count     int
	Countdown int
	// Tick is the countdown step.
	Tick    time.Duration
	Spacing time.Duration
	// Window is how long claimants are collected after the burst.
	Window time.Duration
	// RetryDelay is the wait between attempts while another publish holds the flag.
	RetryDelay time.Duration
	Coins      int64
	Points     int64
}

// Request starts a mega drop. ChannelID is used when the community has no drop channel.
type Request struct {
	CommunityID string
	MemberID    string
	ChannelID   string
}

// Tally is one participant's settlement.
type Tally struct {
	MemberID string
	Name     string
	New      int
	Dupes    int
}

// Report describes a finished mega drop.
type Report struct {
	ChannelID string
	Drops     []*drops.Drop
	Tallies   []Tally
	Summary   string
}

// Orchestrator runs mega drops, at most one per community at a time.
type Orchestrator struct {
	ledger    *ledger.Ledger
	registry  *community.Registry
	engine    *drops.Engine
	messenger messaging.Messenger
	settings  Settings
	log       zerolog.Logger
}

func NewOrchestrator(l *ledger.Ledger, reg *community.Registry, engine *drops.Engine, m messaging.Messenger, settings Settings) *Orchestrator {
	if settings.RetryDelay < minRetryDelay {
		settings.RetryDelay = minRetryDelay
	}
	return &Orchestrator{
		ledger:    l,
		registry:  reg,
		engine:    engine,
		messenger: m,
		settings:  settings,
		log:       logger.Component("mega"),
	}
}

// Cost returns the entry fee.
func (o *Orchestrator) Cost() int64 {
	return o.settings.Cost
}

// Run performs entry check, charge, countdown, burst, collection window,
// settlement and report. The community's mega flag is held from the charge
// until the report is posted.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Report, error) {
	log := logger.ForCommunity(o.log, req.CommunityID).With().Str("member_id", req.MemberID).Logger()

	acc, _ := o.ledger.Account(req.CommunityID, req.MemberID)
	if acc.Coins < o.settings.Cost {
		return nil, apperrors.Wrap(ErrInsufficientCoins, apperrors.ErrCodeValidation, "Not enough coins!").
			WithDetail("cost", o.settings.Cost).
			WithDetail("coins", acc.Coins)
	}

	st := o.registry.Get(req.CommunityID)
	if !st.TryBeginMega() {
		return nil, apperrors.NewBusyError("mega drop", ErrAlreadyRunning)
	}
	defer st.EndMega()

	charged, err := o.ledger.Debit(ctx, req.CommunityID, req.MemberID, o.settings.Cost)
	if err != nil {
		return nil, err
	}
	if !charged {
		return nil, apperrors.Wrap(ErrInsufficientCoins, apperrors.ErrCodeValidation, "Not enough coins!")
	}
	log.Info().Int64("cost", o.settings.Cost).Msg("Mega drop charged")

	channelID := o.ledger.DropChannel(req.CommunityID)
	if channelID == "" {
		channelID = req.ChannelID
	}

	if err := o.countdown(ctx, channelID, log); err != nil {
		return nil, err
	}

	if len(o.ledger.Catalog(req.CommunityID)) == 0 {
		return nil, apperrors.Wrap(drops.ErrNoImages, apperrors.ErrCodeValidation, "No images.")
	}

	published := make([]*drops.Drop, 0, o.settings.Count)
	defer func() {
		// windows still open here belong to an aborted run
		for _, d := range published {
			st.CloseWindow(d.MessageID)
		}
	}()

	for i := 0; i < o.settings.Count; i++ {
		if i > 0 {
			if err := timeutil.Sleep(ctx, o.settings.Spacing); err != nil {
				return nil, err
			}
		}
		c, err := o.engine.Pick(req.CommunityID)
		if err != nil {
			return nil, err
		}
		drop, err := o.publish(ctx, req.CommunityID, channelID, c)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("index", i).Msg("Failed to publish mega drop")
			continue
		}
		published = append(published, drop)
	}

	if err := timeutil.Sleep(ctx, o.settings.Window); err != nil {
		return nil, err
	}

	report, err := o.settle(ctx, req.CommunityID, channelID, st, published)
	if err != nil {
		return nil, err
	}
	if _, err := o.messenger.Send(ctx, channelID, report.Summary); err != nil {
		log.Warn().Err(err).Msg("Failed to post mega drop summary")
	}
	log.Info().Int("drops", len(report.Drops)).Int("participants", len(report.Tallies)).Msg("Mega drop finished")
	return report, nil
}

func (o *Orchestrator) countdown(ctx context.Context, channelID string, log zerolog.Logger) error {
	n := o.settings.Countdown
	if n <= 0 {
		return nil
	}
	messageID, err := o.messenger.Send(ctx, channelID, countdownText(n))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to post countdown")
	}
	for i := n - 1; i >= 1; i-- {
		if err := timeutil.Sleep(ctx, o.settings.Tick); err != nil {
			return err
		}
		if messageID == "" {
			continue
		}
		if err := o.messenger.Edit(ctx, channelID, messageID, countdownText(i)); err != nil {
			log.Warn().Err(err).Int("remaining", i).Msg("Failed to update countdown")
		}
	}
	if err := timeutil.Sleep(ctx, o.settings.Tick); err != nil {
		return err
	}
	if messageID != "" {
		if err := o.messenger.Delete(ctx, channelID, messageID); err != nil {
			log.Warn().Err(err).Msg("Failed to delete countdown")
		}
	}
	return nil
}

func countdownText(seconds int) string {
	return fmt.Sprintf("🎲 Mega drop starting in %d seconds!", seconds)
}

// publish waits out a normal drop that holds the publish flag.
func (o *Orchestrator) publish(ctx context.Context, communityID, channelID string, c dd.Collectible) (*drops.Drop, error) {
	for {
		drop, err := o.engine.Publish(ctx, communityID, channelID, c, drops.KindMega)
		if !errors.Is(err, drops.ErrPublishInFlight) {
			return drop, err
		}
		if err := timeutil.Sleep(ctx, o.settings.RetryDelay); err != nil {
			return nil, err
		}
	}
}

// settle closes every window and grants each claimant once per drop.
func (o *Orchestrator) settle(ctx context.Context, communityID, channelID string, st *community.State, published []*drops.Drop) (*Report, error) {
	var awards []ledger.Award
	for _, d := range published {
		for _, member := range st.CloseWindow(d.MessageID) {
			awards = append(awards, ledger.Award{
				MemberID:    member,
				Collectible: d.Collectible,
				Coins:       o.settings.Coins,
				Points:      o.settings.Points,
			})
		}
	}

	results, err := o.ledger.GrantBatch(ctx, communityID, awards)
	if err != nil {
		return nil, err
	}

	index := map[string]int{}
	var tallies []Tally
	for i, a := range awards {
		pos, ok := index[a.MemberID]
		if !ok {
			pos = len(tallies)
			index[a.MemberID] = pos
			tallies = append(tallies, Tally{MemberID: a.MemberID})
		}
		if results[i] {
			tallies[pos].New++
		} else {
			tallies[pos].Dupes++
		}
	}

	var b strings.Builder
	b.WriteString("🔥 Mega Drop Complete!\n")
	for i := range tallies {
		tallies[i].Name = messaging.NameOrMention(ctx, o.messenger, communityID, tallies[i].MemberID)
		fmt.Fprintf(&b, "**%s** — New: %d, Dupes: %d\n", tallies[i].Name, tallies[i].New, tallies[i].Dupes)
	}

	return &Report{
		ChannelID: channelID,
		Drops:     published,
		Tallies:   tallies,
		Summary:   strings.TrimRight(b.String(), "\n"),
	}, nil
}
