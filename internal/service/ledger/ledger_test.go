package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dice-drop-bot/internal/common/errors"
	dd "dice-drop-bot/internal/domain/dice"
	"dice-drop-bot/internal/platform/store"
)

const guild = "g1"

func newLedger(t *testing.T) (*Ledger, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	l, err := New(context.Background(), st)
	require.NoError(t, err)
	return l, st
}

func TestGrantTwice(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	x := dd.NewCollectible(3, "u3")

	granted, err := l.Grant(ctx, guild, "m1", x, 100, 10)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = l.Grant(ctx, guild, "m1", x, 100, 10)
	require.NoError(t, err)
	assert.False(t, granted)

	acc, ok := l.Account(guild, "m1")
	require.True(t, ok)
	assert.Equal(t, []int{3}, acc.Images)
	assert.Equal(t, int64(100), acc.Coins)
	assert.Equal(t, int64(10), acc.Points)
}

func TestGrantBatchDuplicatesInsideBatch(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)
	a, b := dd.NewCollectible(1, "u1"), dd.NewCollectible(2, "u2")

	results, err := l.GrantBatch(ctx, guild, []Award{
		{MemberID: "m1", Collectible: a, Coins: 100, Points: 10},
		{MemberID: "m1", Collectible: a, Coins: 100, Points: 10},
		{MemberID: "m1", Collectible: b, Coins: 100, Points: 10},
		{MemberID: "m2", Collectible: a, Coins: 100, Points: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true}, results)
	assert.Equal(t, 1, st.Saves())

	acc, _ := l.Account(guild, "m1")
	assert.Equal(t, int64(200), acc.Coins)
}

func TestDebitNeverNegative(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, err := l.Credit(ctx, guild, "m1", 50)
	require.NoError(t, err)

	ok, err := l.Debit(ctx, guild, "m1", 51)
	require.NoError(t, err)
	assert.False(t, ok)
	acc, _ := l.Account(guild, "m1")
	assert.Equal(t, int64(50), acc.Coins)

	ok, err = l.Debit(ctx, guild, "m1", 50)
	require.NoError(t, err)
	assert.True(t, ok)
	acc, _ = l.Account(guild, "m1")
	assert.Equal(t, int64(0), acc.Coins)

	ok, err = l.Debit(ctx, guild, "ghost", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreditRejectsNonPositive(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Credit(context.Background(), guild, "m1", 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestAppendImagesSequence(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	first, last, err := l.AppendImages(ctx, guild, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, last)

	first, last, err = l.AppendImages(ctx, guild, []string{"c", "d", "e"})
	require.NoError(t, err)
	assert.Equal(t, 3, first)
	assert.Equal(t, 5, last)

	catalog := l.Catalog(guild)
	require.Len(t, catalog, 5)
	for i, c := range catalog {
		assert.Equal(t, i+1, c.Number)
		assert.Equal(t, dd.CollectibleName(i+1), c.Name)
	}

	c, ok := l.Collectible(guild, 4)
	require.True(t, ok)
	assert.Equal(t, "d", c.URL)
	_, ok = l.Collectible(guild, 6)
	assert.False(t, ok)

	_, _, err = l.AppendImages(ctx, guild, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))

	first, _, err = l.AppendImages(ctx, "other", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 1, first, "numbering is per community")
}

func TestSaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)
	_, err := l.Credit(ctx, guild, "m1", 100)
	require.NoError(t, err)

	st.SetSaveErr(errors.New("disk full"))
	granted, err := l.Grant(ctx, guild, "m1", dd.NewCollectible(1, "u"), 100, 10)
	require.Error(t, err)
	assert.False(t, granted)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistence))

	acc, _ := l.Account(guild, "m1")
	assert.Equal(t, int64(100), acc.Coins)
	assert.Empty(t, acc.Images)

	st.SetSaveErr(nil)
	granted, err = l.Grant(ctx, guild, "m1", dd.NewCollectible(1, "u"), 100, 10)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestConcurrentGrantsSameCollectible(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	x := dd.NewCollectible(1, "u")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := l.Grant(ctx, guild, "m1", x, 100, 10)
			assert.NoError(t, err)
			if granted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	assert.Empty(t, l.Leaderboard(guild, 10))

	require.NoError(t, l.EnsureAccount(ctx, guild, "30"))
	_, err := l.Grant(ctx, guild, "20", dd.NewCollectible(1, "u"), 100, 10)
	require.NoError(t, err)
	_, err = l.Grant(ctx, guild, "100", dd.NewCollectible(1, "u"), 100, 10)
	require.NoError(t, err)
	_, err = l.Grant(ctx, guild, "100", dd.NewCollectible(2, "u"), 100, 10)
	require.NoError(t, err)
	_, err = l.Grant(ctx, guild, "9", dd.NewCollectible(2, "u"), 100, 10)
	require.NoError(t, err)

	board := l.Leaderboard(guild, 10)
	require.Len(t, board, 4)
	assert.Equal(t, "100", board[0].MemberID)
	assert.Equal(t, int64(20), board[0].Points)
	assert.Equal(t, 2, board[0].Collected)
	// equal points break on member id, numerically for snowflakes
	assert.Equal(t, "9", board[1].MemberID)
	assert.Equal(t, "20", board[2].MemberID)
	assert.Equal(t, "30", board[3].MemberID)
	assert.Equal(t, 4, board[3].Rank)

	assert.Len(t, l.Leaderboard(guild, 2), 2)
}

func TestGlobalRanking(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	assert.Empty(t, l.GlobalRanking(10))

	_, err := l.Grant(ctx, "a", "m1", dd.NewCollectible(1, "u"), 0, 0)
	require.NoError(t, err)
	_, err = l.Grant(ctx, "b", "m1", dd.NewCollectible(1, "u"), 0, 0)
	require.NoError(t, err)
	_, err = l.Grant(ctx, "b", "m2", dd.NewCollectible(1, "u"), 0, 0)
	require.NoError(t, err)

	ranking := l.GlobalRanking(10)
	require.Len(t, ranking, 2)
	assert.Equal(t, "m1", ranking[0].MemberID)
	assert.Equal(t, 2, ranking[0].Collected)
	assert.Equal(t, 1, ranking[1].Collected)
}

func TestDropConfiguration(t *testing.T) {
	ctx := context.Background()
	l, st := newLedger(t)

	require.NoError(t, l.SetDropChannel(ctx, guild, "chan"))
	require.NoError(t, l.SetDropRole(ctx, guild, "role"))
	assert.Equal(t, "chan", l.DropChannel(guild))
	assert.Equal(t, "role", l.DropRole(guild))
	assert.Empty(t, l.DropTargets(), "no catalog yet")

	_, _, err := l.AppendImages(ctx, guild, []string{"u"})
	require.NoError(t, err)
	assert.Equal(t, []Target{{CommunityID: guild, ChannelID: "chan"}}, l.DropTargets())

	saves := st.Saves()
	require.NoError(t, l.SetDropChannel(ctx, guild, "chan"))
	assert.Equal(t, saves, st.Saves(), "unchanged value is not saved")

	require.NoError(t, l.SetDropRole(ctx, guild, ""))
	assert.Empty(t, l.DropRole(guild))
	assert.Equal(t, []string{guild}, l.Communities())
}

func TestNewFailsOnUnreadableStore(t *testing.T) {
	_, err := New(context.Background(), failingStore{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistence))
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context) (*dd.Document, error) {
	return nil, errors.New("corrupt")
}

func (failingStore) Save(ctx context.Context, doc *dd.Document) error { return nil }

func TestSnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, err := l.Credit(ctx, guild, "m1", 50)
	require.NoError(t, err)

	snap := l.Snapshot()
	snap.Users[guild]["m1"].Coins = 9999

	acc, ok := l.Account(guild, "m1")
	require.True(t, ok)
	assert.Equal(t, int64(50), acc.Coins)
}
