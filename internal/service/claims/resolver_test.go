package claims

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/platform/store"
	"dice-drop-bot/internal/service/community"
	"dice-drop-bot/internal/service/ledger"
	"dice-drop-bot/internal/testutil"
)

const guild = "g1"

type fixture struct {
	ledger    *ledger.Ledger
	store     *store.MemoryStore
	registry  *community.Registry
	messenger *testutil.MockMessenger
	resolver  *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	l, err := ledger.New(ctx, st)
	require.NoError(t, err)
	_, _, err = l.AppendImages(ctx, guild, []string{"u1", "u2", "u3"})
	require.NoError(t, err)

	f := &fixture{ledger: l, store: st, registry: community.NewRegistry(), messenger: &testutil.MockMessenger{}}
	f.resolver = NewResolver(l, f.registry, f.messenger, Rewards{Coins: 100, Points: 10})
	return f
}

func signal(messageID, member, title string) Signal {
	return Signal{
		CommunityID: guild,
		ChannelID:   "chan",
		MessageID:   messageID,
		MemberID:    member,
		Emoji:       messaging.ClaimEmoji,
		Title:       title,
	}
}

func TestNormalClaimGranted(t *testing.T) {
	f := newFixture(t)

	out, err := f.resolver.HandleClaim(context.Background(), signal("m1", "u7", "Dice#2 Drop!"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out)

	acc, _ := f.ledger.Account(guild, "u7")
	assert.Equal(t, []int{2}, acc.Images)
	assert.Equal(t, int64(100), acc.Coins)
	assert.Equal(t, int64(10), acc.Points)
	assert.Equal(t, []string{"🎉 Congratulations <@u7>! You caught Dice#2 and earned 100 coins + 10 points!"}, f.messenger.Texts())

	out, err = f.resolver.HandleClaim(context.Background(), signal("m1", "u8", "Dice#2 Drop!"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, out)
}

func TestIgnoredSignals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bot := signal("m1", "u1", "Dice#1 Drop!")
	bot.IsBot = true
	wrongEmoji := signal("m1", "u1", "Dice#1 Drop!")
	wrongEmoji.Emoji = "👍"
	noTitle := signal("m1", "u1", "")

	for _, sig := range []Signal{bot, wrongEmoji, noTitle} {
		out, err := f.resolver.HandleClaim(ctx, sig)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, out)
	}
	assert.Empty(t, f.messenger.Messages())
	assert.False(t, f.registry.Get(guild).Claimed("m1"))
}

func TestAlreadyOwnedLeavesDropClaimable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.resolver.HandleClaim(ctx, signal("m1", "u1", "Dice#1 Drop!"))
	require.NoError(t, err)
	require.Equal(t, OutcomeGranted, out)

	out, err = f.resolver.HandleClaim(ctx, signal("m2", "u1", "Dice#1 Drop!"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyOwned, out)

	out, err = f.resolver.HandleClaim(ctx, signal("m2", "u2", "Dice#1 Drop!"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out)
}

func TestInvalidTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"Weekly Drop!", "Dice#9 Drop!"} {
		out, err := f.resolver.HandleClaim(ctx, signal("m1", "u1", title))
		assert.Equal(t, OutcomeInvalid, out, title)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation), title)
	}
	assert.False(t, f.registry.Get(guild).Claimed("m1"))
}

func TestConcurrentClaimsSingleGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcomes := make([]Outcome, 25)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.resolver.HandleClaim(ctx, signal("m1", string(rune('a'+i)), "Dice#3 Drop!"))
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, out := range outcomes {
		if out == OutcomeGranted {
			granted++
		} else {
			assert.Equal(t, OutcomeAlreadyClaimed, out)
		}
	}
	assert.Equal(t, 1, granted)

	owners := 0
	for i := range outcomes {
		if f.ledger.Owns(guild, string(rune('a'+i)), 3) {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
}

func TestMegaClaimsRecordedThenRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.registry.Get(guild)
	title := "Dice#1 Drop! — MEGA DROP!"
	st.OpenWindow("mega-1")

	for _, member := range []string{"u2", "u1", "u2"} {
		out, err := f.resolver.HandleClaim(ctx, signal("mega-1", member, title))
		require.NoError(t, err)
		assert.Equal(t, OutcomeRecorded, out)
	}
	acc, _ := f.ledger.Account(guild, "u1")
	assert.Empty(t, acc.Images, "recording does not grant")

	assert.Equal(t, []string{"u1", "u2"}, st.CloseWindow("mega-1"))

	out, err := f.resolver.HandleClaim(ctx, signal("mega-1", "u3", title))
	require.NoError(t, err)
	assert.Equal(t, OutcomeWindowClosed, out)
}

func TestPersistenceFailureReleasesClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SetSaveErr(errors.New("disk full"))

	_, err := f.resolver.HandleClaim(ctx, signal("m1", "u1", "Dice#1 Drop!"))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistence))
	assert.False(t, f.registry.Get(guild).Claimed("m1"))
	assert.Empty(t, f.messenger.Texts())

	f.store.SetSaveErr(nil)
	out, err := f.resolver.HandleClaim(ctx, signal("m1", "u1", "Dice#1 Drop!"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out)
}

func TestAnnouncementFailureStillGrants(t *testing.T) {
	f := newFixture(t)
	f.messenger.OnSend = func(context.Context, string, string) error { return errors.New("missing permissions") }

	out, err := f.resolver.HandleClaim(context.Background(), signal("m1", "u1", "Dice#1 Drop!"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out)
	assert.True(t, f.ledger.Owns(guild, "u1", 1))
}

func TestClaimedDropStaysClaimedAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig := signal("m1", "a", "Dice#2 Drop!")
	sig.PostedAt = time.Now()
	out, err := f.resolver.HandleClaim(ctx, sig)
	require.NoError(t, err)
	require.Equal(t, OutcomeGranted, out)

	time.Sleep(2 * time.Millisecond)
	restarted := NewResolver(f.ledger, community.NewRegistry(), f.messenger, Rewards{Coins: 100, Points: 10})

	sig.MemberID = "b"
	out, err = restarted.HandleClaim(ctx, sig)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyClaimed, out)
	assert.False(t, f.ledger.Owns(guild, "b", 2))

	fresh := signal("m2", "b", "Dice#2 Drop!")
	fresh.PostedAt = time.Now()
	out, err = restarted.HandleClaim(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out)
}

func TestMegaClaimWaitsForWindowDuringPost(t *testing.T) {
	f := newFixture(t)
	st := f.registry.Get(guild)
	title := "Dice#1 Drop! — MEGA DROP!"

	st.BeginPost()
	done := make(chan Outcome, 1)
	go func() {
		out, _ := f.resolver.HandleClaim(context.Background(), signal("mega-1", "u1", title))
		done <- out
	}()
	time.Sleep(10 * time.Millisecond)
	st.OpenWindow("mega-1")
	st.EndPost()

	assert.Equal(t, OutcomeRecorded, <-done)
	assert.Equal(t, []string{"u1"}, st.CloseWindow("mega-1"))

	st.BeginPost()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	out, err := f.resolver.HandleClaim(ctx, signal("mega-0", "u1", title))
	require.NoError(t, err)
	assert.Equal(t, OutcomeWindowClosed, out)
	st.EndPost()
}
