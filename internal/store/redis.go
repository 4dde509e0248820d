package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const liveKeyPrefix = "classroll:live:"

// Redis wraps the redis client used for the queue backend and the per-lesson
// live attendance counters the worker maintains.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// BumpLiveAttendance increments the live check-in counter for a lesson.
func (r *Redis) BumpLiveAttendance(ctx context.Context, lessonID string) error {
	return r.Client.Incr(ctx, liveKeyPrefix+lessonID).Err()
}

// LiveAttendance reads the live check-in counter for a lesson; missing keys
// read as zero.
func (r *Redis) LiveAttendance(ctx context.Context, lessonID string) (int64, error) {
	n, err := r.Client.Get(ctx, liveKeyPrefix+lessonID).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
