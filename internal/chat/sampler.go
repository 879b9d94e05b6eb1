package chat

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultSampleInterval spaces generated messages in Run.
	DefaultSampleInterval = 1500 * time.Millisecond
	// DefaultBackfillCount is how many messages Backfill writes into an empty feed.
	DefaultBackfillCount = 8

	opSamplerNew = "chat.sampler.new"
	opSample     = "chat.sampler.sample"
	opBackfill   = "chat.sampler.backfill"

	reasonMissingFeed  = "missing_feed"
	reasonMissingUsers = "missing_users"
	reasonListFailed   = "list_users_failed"
)

var (
	errMissingFeed  = errors.New("chat feed is required")
	errMissingUsers = errors.New("user directory is required")
)

var samplePhrases = []string{
	"Wow, that placement is spicy! 🔥",
	"Move it up a tier, surely. ⬆️",
	"Down to C for me. ⬇️",
	"Hard S-tier. No debate. 💯",
	"A-tier at best. 😌",
	"B feels right. 👍",
	"Chat, what do we think? 🤔",
	"That image is clean. ✨",
	"We need more data. 📊",
	"Speedrun the ranking! 🏃‍♂️💨",
	"Based take. 🙌",
	"I disagree respectfully. 🙇",
	"Giga-brain move. 🧠",
	"Cope and seethe. 😤",
	"W placement. 🏆",
	"L take. 😬",
}

// UserDirectory lists the users the sampler may speak as.
type UserDirectory interface {
	List(ctx context.Context) ([]store.User, error)
}

// SamplerConfig describes the dependencies of the development chat sampler.
type SamplerConfig struct {
	Feed          *Feed
	Users         UserDirectory
	Interval      time.Duration
	BackfillCount int
	Logger        *zap.Logger
	// PickIndex returns a value in [0, n); defaults to math/rand/v2.
	PickIndex func(n int) int
}

// Sampler fills the feed with canned phrases so an empty room looks alive.
type Sampler struct {
	feed          *Feed
	users         UserDirectory
	interval      time.Duration
	backfillCount int
	logger        *zap.Logger
	pickIndex     func(n int) int

	mu          sync.Mutex
	phraseIndex int
}

// NewSampler validates dependencies and constructs a sampler.
func NewSampler(cfg SamplerConfig) (*Sampler, error) {
	if cfg.Feed == nil {
		return nil, store.NewServiceError(opSamplerNew, reasonMissingFeed, errMissingFeed)
	}
	if cfg.Users == nil {
		return nil, store.NewServiceError(opSamplerNew, reasonMissingUsers, errMissingUsers)
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	backfill := cfg.BackfillCount
	if backfill <= 0 {
		backfill = DefaultBackfillCount
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	pick := cfg.PickIndex
	if pick == nil {
		pick = rand.IntN
	}
	return &Sampler{
		feed:          cfg.Feed,
		users:         cfg.Users,
		interval:      interval,
		backfillCount: backfill,
		logger:        logger,
		pickIndex:     pick,
	}, nil
}

// Run appends one sampled message per interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("chat sampler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("chat sampler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sample(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("chat sampler tick failed", zap.Error(err))
			}
		}
	}
}

// Sample appends the next phrase as a randomly chosen user. It reports false
// when there are no users to speak as.
func (s *Sampler) Sample(ctx context.Context) (bool, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return false, store.NewServiceError(opSample, reasonListFailed, err)
	}
	if len(users) == 0 {
		return false, nil
	}

	s.mu.Lock()
	phrase := samplePhrases[s.phraseIndex]
	s.phraseIndex = (s.phraseIndex + 1) % len(samplePhrases)
	s.mu.Unlock()

	author := users[s.pickIndex(len(users))]
	if _, err := s.feed.Append(ctx, store.UserID(author.ID), phrase); err != nil {
		return false, err
	}
	return true, nil
}

// Backfill writes the configured number of messages, round-robin across users,
// when the feed is empty. It returns how many messages were written.
func (s *Sampler) Backfill(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.feed.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return 0, store.NewServiceError(opBackfill, reasonListFailed, err)
	}
	if len(users) == 0 {
		return 0, nil
	}

	for index := 0; index < s.backfillCount; index++ {
		author := users[index%len(users)]
		phrase := samplePhrases[(s.phraseIndex+index)%len(samplePhrases)]
		if _, err := s.feed.Append(ctx, store.UserID(author.ID), phrase); err != nil {
			return index, err
		}
	}
	s.phraseIndex = (s.phraseIndex + s.backfillCount) % len(samplePhrases)
	s.logger.Info("chat feed backfilled", zap.Int("messages", s.backfillCount))
	return s.backfillCount, nil
}
