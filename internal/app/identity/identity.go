// Package identity resolves student identity details behind a redis read-through cache.
// Cached values are for display and token enrichment only; write paths read the student row.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/yigit/placement/internal/app/models"
)

const keyPrefix = "placement:identity:"

// DefaultTTL bounds how long a cached profile is served
const DefaultTTL = 15 * time.Minute

// Profile is the cached subset of a student row
type Profile struct {
	StudentID  string `json:"studentId"`
	RollNumber string `json:"rollNumber"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// Key is the composite-key half for this student
func (p Profile) Key() string {
	if p.RollNumber != "" {
		return p.RollNumber
	}
	return p.StudentID
}

// Store is the redis subset the resolver uses; *redis.Client satisfies it
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// StudentLookup loads the authoritative student row
type StudentLookup interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

// Resolver serves profiles from redis and falls back to the student store.
// A nil store disables caching.
type Resolver struct {
	store    Store
	students StudentLookup
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewResolver creates a resolver
func NewResolver(store Store, students StudentLookup, ttl time.Duration, logger zerolog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		store:    store,
		students: students,
		ttl:      ttl,
		logger:   logger.With().Str("component", "identity").Logger(),
	}
}

func cacheKey(studentID string) string {
	return keyPrefix + studentID
}

// Lookup returns the profile of studentID. Cache errors degrade to a store read.
func (r *Resolver) Lookup(ctx context.Context, studentID string) (*Profile, error) {
	if studentID == "" {
		return nil, errors.New("student id is required")
	}

	if r.store != nil {
		raw, err := r.store.Get(ctx, cacheKey(studentID)).Bytes()
		switch {
		case err == nil:
			var p Profile
			if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
				return &p, nil
			}
			r.logger.Warn().Str("studentID", studentID).Msg("Discarding unreadable cached identity")
		case !errors.Is(err, redis.Nil):
			r.logger.Warn().Err(err).Str("studentID", studentID).Msg("Identity cache read failed")
		}
	}

	student, err := r.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("error loading student identity: %w", err)
	}
	p := &Profile{StudentID: student.ID, RollNumber: student.RollNumber, Name: student.Name, Email: student.Email}

	if r.store != nil {
		if body, err := json.Marshal(p); err == nil {
			if err := r.store.Set(ctx, cacheKey(studentID), body, r.ttl).Err(); err != nil {
				r.logger.Warn().Err(err).Str("studentID", studentID).Msg("Identity cache write failed")
			}
		}
	}
	return p, nil
}

// Invalidate drops the cached profile, e.g. on logout
func (r *Resolver) Invalidate(ctx context.Context, studentID string) error {
	if r.store == nil || studentID == "" {
		return nil
	}
	if err := r.store.Del(ctx, cacheKey(studentID)).Err(); err != nil {
		return fmt.Errorf("error invalidating identity cache: %w", err)
	}
	return nil
}
