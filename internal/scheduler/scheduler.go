// Package scheduler drives the two periodic engines: a short-interval
// reconciliation sweep over all users and a longer-interval decision pass
// over all active strategies. The drivers are independent of each other
// and of the tick stream; neither ever blocks market-data ingestion.
package scheduler

import (
	"context"
	"sync"
	"time"

	"marketbot/internal/models"
	"marketbot/pkg/logger"
)

type UserSource interface {
	List(ctx context.Context) ([]*models.UserAccount, error)
}

type StrategySource interface {
	ListActive(ctx context.Context) ([]*models.UserStrategyState, error)
}

type ReconcileRunner interface {
	Reconcile(ctx context.Context, user *models.UserAccount) error
}

type DecisionRunner interface {
	RunCycle(ctx context.Context, state *models.UserStrategyState, cfg *models.StrategyConfig, chatID int64) (models.Side, error)
}

type Scheduler struct {
	users      UserSource
	strategies StrategySource
	reconciler ReconcileRunner
	decisions  DecisionRunner
	configs    map[int64]*models.StrategyConfig

	reconcileEvery time.Duration
	decideEvery    time.Duration

	// one in-flight run per user per driver; a run outlasting its interval
	// must not start a second concurrent run for the same user
	mu                sync.Mutex
	reconcileInflight map[int64]bool
	decideInflight    map[int64]bool

	wg sync.WaitGroup
}

func New(
	users UserSource,
	strategies StrategySource,
	reconciler ReconcileRunner,
	decisions DecisionRunner,
	configs []models.StrategyConfig,
	reconcileEvery, decideEvery time.Duration,
) *Scheduler {
	byID := make(map[int64]*models.StrategyConfig, len(configs))
	for i := range configs {
		byID[configs[i].ID] = &configs[i]
	}
	if reconcileEvery <= 0 {
		reconcileEvery = 60 * time.Second
	}
	if decideEvery <= 0 {
		decideEvery = 15 * time.Minute
	}
	return &Scheduler{
		users:             users,
		strategies:        strategies,
		reconciler:        reconciler,
		decisions:         decisions,
		configs:           byID,
		reconcileEvery:    reconcileEvery,
		decideEvery:       decideEvery,
		reconcileInflight: make(map[int64]bool),
		decideInflight:    make(map[int64]bool),
	}
}

// Start launches both drivers. Each runs once immediately, then on its
// interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.loop(ctx, s.reconcileEvery, s.reconcileAll)
	go s.loop(ctx, s.decideEvery, s.decideAll)
}

// Wait blocks until both driver loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, every time.Duration, run func(ctx context.Context)) {
	defer s.wg.Done()

	run(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

func (s *Scheduler) reconcileAll(ctx context.Context) {
	users, err := s.users.List(ctx)
	if err != nil {
		logger.Error("[SCHED] list users failed: %v", err)
		return
	}
	logger.Info("[SCHED] reconcile sweep: %d users", len(users))

	for _, user := range users {
		if !s.acquire(s.reconcileInflight, user.ID) {
			logger.Warn("[SCHED] reconcile for user %d still running, skipping this round", user.ID)
			continue
		}
		go func(u *models.UserAccount) {
			defer s.release(s.reconcileInflight, u.ID)
			if err := s.reconciler.Reconcile(ctx, u); err != nil {
				logger.Error("[SCHED] reconcile user %d failed: %v", u.ID, err)
			}
		}(user)
	}
}

func (s *Scheduler) decideAll(ctx context.Context) {
	states, err := s.strategies.ListActive(ctx)
	if err != nil {
		logger.Error("[SCHED] list active strategies failed: %v", err)
		return
	}

	chatIDs := s.chatIDs(ctx)
	logger.Info("[SCHED] decision sweep: %d active strategies", len(states))

	// distinct users run concurrently; the cycles of one user run in a
	// single goroutine so its state only ever has one writer
	byUser := make(map[int64][]*models.UserStrategyState)
	for _, state := range states {
		byUser[state.UserID] = append(byUser[state.UserID], state)
	}

	for userID, group := range byUser {
		if !s.acquire(s.decideInflight, userID) {
			logger.Warn("[SCHED] decision pass for user %d still running, skipping this round", userID)
			continue
		}
		go func(uid int64, group []*models.UserStrategyState) {
			defer s.release(s.decideInflight, uid)
			for _, st := range group {
				cfg, ok := s.configs[st.StrategyConfigID]
				if !ok {
					logger.Warn("[SCHED] strategy %d references unknown config %d", st.ID, st.StrategyConfigID)
					continue
				}
				if _, err := s.decisions.RunCycle(ctx, st, cfg, chatIDs[uid]); err != nil {
					logger.Error("[SCHED] decision cycle user %d strategy %d failed: %v", uid, st.ID, err)
				}
			}
		}(userID, group)
	}
}

func (s *Scheduler) chatIDs(ctx context.Context) map[int64]int64 {
	out := make(map[int64]int64)
	users, err := s.users.List(ctx)
	if err != nil {
		return out
	}
	for _, u := range users {
		out[u.ID] = u.TelegramChatID
	}
	return out
}

func (s *Scheduler) acquire(inflight map[int64]bool, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inflight[id] {
		return false
	}
	inflight[id] = true
	return true
}

func (s *Scheduler) release(inflight map[int64]bool, id int64) {
	s.mu.Lock()
	delete(inflight, id)
	s.mu.Unlock()
}
