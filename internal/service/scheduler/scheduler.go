package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"dice-drop-bot/internal/common/logger"
	"dice-drop-bot/internal/service/drops"
	"dice-drop-bot/internal/service/ledger"
)

// dropTimeout bounds one community's publish inside a tick.
const dropTimeout = 2 * time.Minute

// Scheduler publishes a random normal drop into every configured community on each tick.
type Scheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	ledger   *ledger.Ledger
	engine   *drops.Engine
	interval time.Duration
	log      zerolog.Logger
}

func NewScheduler(parent context.Context, l *ledger.Ledger, engine *drops.Engine, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:      ctx,
		cancel:   cancel,
		ledger:   l,
		engine:   engine,
		interval: interval,
		log:      logger.Component("scheduler"),
	}
}

func (s *Scheduler) Start() {
	s.log.Info().Dur("interval", s.interval).Msg("Starting drop scheduler")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Tick(s.ctx)
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for in-flight drops.
func (s *Scheduler) Stop() {
	s.log.Info().Msg("Stopping drop scheduler")
	s.cancel()
	s.wg.Wait()
}

// Tick drops into every target concurrently and returns how many drops were published.
// A community still publishing is skipped.
func (s *Scheduler) Tick(ctx context.Context) int {
	targets := s.ledger.DropTargets()
	var published int32
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target ledger.Target) {
			defer wg.Done()
			dctx, cancel := context.WithTimeout(ctx, dropTimeout)
			defer cancel()

			log := logger.ForCommunity(s.log, target.CommunityID)
			_, err := s.engine.DropRandom(dctx, target.CommunityID, target.ChannelID)
			switch {
			case err == nil:
				atomic.AddInt32(&published, 1)
			case errors.Is(err, drops.ErrPublishInFlight), errors.Is(err, drops.ErrNoImages):
				log.Debug().Err(err).Msg("Scheduled drop skipped")
			default:
				log.Error().Err(err).Msg("Scheduled drop failed")
			}
		}(target)
	}
	wg.Wait()
	return int(published)
}
