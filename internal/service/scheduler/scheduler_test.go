package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dice-drop-bot/internal/messaging"
	"dice-drop-bot/internal/platform/store"
	"dice-drop-bot/internal/service/community"
	"dice-drop-bot/internal/service/drops"
	"dice-drop-bot/internal/service/ledger"
	"dice-drop-bot/internal/testutil"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(context.Background(), store.NewMemoryStore())
	require.NoError(t, err)
	return l
}

func configure(t *testing.T, l *ledger.Ledger, community, channel string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, l.SetDropChannel(ctx, community, channel))
	_, _, err := l.AppendImages(ctx, community, []string{"https://cdn/" + community + ".png"})
	require.NoError(t, err)
}

func TestTickPublishesCommunitiesIndependently(t *testing.T) {
	l := newLedger(t)
	configure(t, l, "a", "chan-a")
	configure(t, l, "b", "chan-b")
	require.NoError(t, l.SetDropChannel(context.Background(), "unconfigured", "chan-c"))

	// each community's publish blocks until the other one has started,
	// so a serialized tick would time out
	var started sync.WaitGroup
	started.Add(2)
	messenger := &testutil.MockMessenger{}
	messenger.OnPublishDrop = func(ctx context.Context, channelID string, post messaging.Post) error {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-time.After(2 * time.Second):
			t.Errorf("publish for %s waited on the other community", channelID)
			return nil
		}
	}

	engine := drops.NewEngine(l, community.NewRegistry(), messenger, 0)
	s := NewScheduler(context.Background(), l, engine, time.Hour)

	assert.Equal(t, 2, s.Tick(context.Background()))

	channels := map[string]bool{}
	for _, msg := range messenger.Drops() {
		channels[msg.ChannelID] = true
	}
	assert.Equal(t, map[string]bool{"chan-a": true, "chan-b": true}, channels)
}

func TestTickSkipsBusyCommunity(t *testing.T) {
	l := newLedger(t)
	configure(t, l, "a", "chan-a")
	registry := community.NewRegistry()
	require.True(t, registry.Get("a").TryBeginPublish())

	messenger := &testutil.MockMessenger{}
	s := NewScheduler(context.Background(), l, drops.NewEngine(l, registry, messenger, 0), time.Hour)

	assert.Equal(t, 0, s.Tick(context.Background()))
	assert.Empty(t, messenger.Messages())
}

func TestStartStop(t *testing.T) {
	l := newLedger(t)
	configure(t, l, "a", "chan-a")
	messenger := &testutil.MockMessenger{}
	s := NewScheduler(context.Background(), l, drops.NewEngine(l, community.NewRegistry(), messenger, 0), 5*time.Millisecond)

	s.Start()
	require.Eventually(t, func() bool { return len(messenger.Drops()) >= 2 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	n := len(messenger.Drops())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, len(messenger.Drops()), "no drops after Stop")
}
