package community

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReturnsSameState(t *testing.T) {
	r := NewRegistry()
	a := r.Get("g1")
	assert.Same(t, a, r.Get("g1"))
	assert.NotSame(t, a, r.Get("g2"))
	assert.Equal(t, "g2", r.Get("g2").ID)
}

func TestRegistryConcurrentGet(t *testing.T) {
	r := NewRegistry()
	states := make([]*State, 32)
	var wg sync.WaitGroup
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = r.Get("g1")
		}(i)
	}
	wg.Wait()
	for _, st := range states {
		assert.Same(t, states[0], st)
	}
}

func TestFlags(t *testing.T) {
	r := NewRegistry()
	st := r.Get("g1")

	require.True(t, st.TryBeginPublish())
	assert.False(t, st.TryBeginPublish())
	require.True(t, st.TryBeginMega())
	assert.False(t, st.TryBeginMega())
	assert.Equal(t, []string{"g1"}, r.Busy())

	st.EndPublish()
	st.EndMega()
	assert.False(t, st.Publishing())
	assert.False(t, st.MegaRunning())
	assert.Empty(t, r.Busy())
	assert.False(t, r.Get("g2").Publishing(), "flags are per community")
}

func TestTryClaimSingleWinner(t *testing.T) {
	st := NewRegistry().Get("g1")
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st.TryClaim("msg") {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
	assert.True(t, st.Claimed("msg"))

	st.ReleaseClaim("msg")
	assert.False(t, st.Claimed("msg"))
	assert.True(t, st.TryClaim("msg"))
}

func TestWindows(t *testing.T) {
	st := NewRegistry().Get("g1")
	assert.False(t, st.Record("m1", "u1"), "no window yet")

	st.OpenWindow("m1")
	assert.True(t, st.WindowOpen("m1"))
	assert.True(t, st.Record("m1", "u2"))
	assert.True(t, st.Record("m1", "u1"))
	assert.True(t, st.Record("m1", "u2"))

	assert.Equal(t, []string{"u1", "u2"}, st.CloseWindow("m1"))
	assert.False(t, st.WindowOpen("m1"))
	assert.False(t, st.Record("m1", "u3"))
	assert.Nil(t, st.CloseWindow("m1"))
}

func TestPostSettledWaitsForWindow(t *testing.T) {
	st := NewRegistry().Get("g1")
	require.NoError(t, st.PostSettled(context.Background()))

	st.BeginPost()
	recorded := make(chan bool, 1)
	go func() {
		if err := st.PostSettled(context.Background()); err != nil {
			recorded <- false
			return
		}
		recorded <- st.Record("m1", "u1")
	}()

	select {
	case <-recorded:
		t.Fatal("claim resolved before the window opened")
	case <-time.After(20 * time.Millisecond):
	}

	st.OpenWindow("m1")
	st.EndPost()
	assert.True(t, <-recorded)
	assert.Equal(t, []string{"u1"}, st.CloseWindow("m1"))
}

func TestPostSettledHonorsContext(t *testing.T) {
	st := NewRegistry().Get("g1")
	st.BeginPost()
	defer st.EndPost()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, st.PostSettled(ctx), context.DeadlineExceeded)
}

func TestPostedBeforeStart(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.PostedBeforeStart(time.Time{}))
	assert.True(t, r.PostedBeforeStart(r.Started().Add(-time.Second)))
	assert.False(t, r.PostedBeforeStart(r.Started()))
	assert.False(t, r.PostedBeforeStart(r.Started().Add(time.Second)))
}
