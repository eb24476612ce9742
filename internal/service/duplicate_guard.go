package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/essaypilot/essaypilot-api/internal/repository"
)

// DuplicateMessage is the canned human-escalation reply returned instead of
// AI feedback when the rolling-window threshold is hit.
const DuplicateMessage = "We've noticed several personal statement submissions from this email address in the past 30 days. " +
	"Repeated AI reviews of the same essay rarely add new insight. For your next revision, we recommend a session with one " +
	"of our human advisors, who can work through the draft with you directly."

// DuplicateCheck is the guard's verdict for one submission.
type DuplicateCheck struct {
	IsDuplicate     bool
	SubmissionCount int64
	Message         string
}

// DuplicateGuard rate-limits repeated personal-statement submissions from the
// same email inside a rolling window. It fails open: a transient backend
// error must never block a legitimate submission.
type DuplicateGuard struct {
	essays    repository.EssayRepository
	cache     *redis.Client
	window    time.Duration
	threshold int64
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewDuplicateGuard constructs the guard. The Redis client is optional; when
// present it short-circuits repeated count queries for a hot email.
func NewDuplicateGuard(essays repository.EssayRepository, cache *redis.Client, window time.Duration, threshold int, cacheTTL time.Duration, logger zerolog.Logger) *DuplicateGuard {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if threshold <= 0 {
		threshold = 5
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &DuplicateGuard{
		essays:    essays,
		cache:     cache,
		window:    window,
		threshold: int64(threshold),
		cacheTTL:  cacheTTL,
		logger:    logger.With().Str("component", "duplicate_guard").Logger(),
	}
}

// CheckForDuplicate applies the rolling-window policy. Supplemental essays
// are never duplicates.
func (g *DuplicateGuard) CheckForDuplicate(ctx context.Context, email string, isPersonalStatement bool) DuplicateCheck {
	if !isPersonalStatement {
		return DuplicateCheck{}
	}

	email = strings.ToLower(strings.TrimSpace(email))

	count, ok := g.cachedCount(ctx, email)
	if !ok {
		var err error
		count, err = g.essays.CountPersonalStatementsSince(ctx, email, time.Now().Add(-g.window))
		if err != nil {
			g.logger.Warn().Err(err).Str("email", email).Msg("duplicate check query failed, failing open")
			return DuplicateCheck{}
		}
		g.storeCount(ctx, email, count)
	}

	if count >= g.threshold {
		return DuplicateCheck{
			IsDuplicate:     true,
			SubmissionCount: count,
			Message:         DuplicateMessage,
		}
	}

	return DuplicateCheck{SubmissionCount: count}
}

func (g *DuplicateGuard) cacheKey(email string) string {
	return fmt.Sprintf("guard:ps_count:%s", email)
}

func (g *DuplicateGuard) cachedCount(ctx context.Context, email string) (int64, bool) {
	if g.cache == nil {
		return 0, false
	}

	value, err := g.cache.Get(ctx, g.cacheKey(email)).Result()
	if err != nil {
		return 0, false
	}

	count, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

func (g *DuplicateGuard) storeCount(ctx context.Context, email string, count int64) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, g.cacheKey(email), count, g.cacheTTL).Err(); err != nil {
		g.logger.Warn().Err(err).Msg("failed to cache duplicate count")
	}
}

// Invalidate drops the cached count for an email after a new submission so
// the next check sees the fresh total.
func (g *DuplicateGuard) Invalidate(ctx context.Context, email string) {
	if g.cache == nil {
		return
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := g.cache.Del(ctx, g.cacheKey(email)).Err(); err != nil {
		g.logger.Warn().Err(err).Msg("failed to invalidate duplicate count cache")
	}
}
