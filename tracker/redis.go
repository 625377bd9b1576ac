package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"streamcast/models"

	redis "github.com/redis/go-redis/v9"
)

const redisJobsSet = "jobs"

// RedisRecord is the JSON value stored at job:<id>.
type RedisRecord struct {
	ID           string          `json:"id"`
	State        models.JobState `json:"processing_status"`
	DashURL      string          `json:"dash_url,omitempty"`
	HLSURL       string          `json:"hls_url,omitempty"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Redis mirrors job state into Redis for readers outside this process.
// Keys: job:<id> => JSON(RedisRecord)
// Sorted set for listing: jobs (score: createdAt unix)
type Redis struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, timeout: 2 * time.Second}
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) jobKey(id string) string { return fmt.Sprintf("job:%s", id) }

func (r *Redis) SetProcessing(ctx context.Context, jobID string) error {
	return r.update(ctx, jobID, models.JobStateProcessing, nil)
}

func (r *Redis) SetReady(ctx context.Context, jobID string, urls models.PublishedURLs) error {
	return r.update(ctx, jobID, models.JobStateReady, func(rec *RedisRecord) {
		rec.DashURL = urls.ManifestURLA
		rec.HLSURL = urls.ManifestURLB
		rec.ThumbnailURL = urls.ThumbnailURL
	})
}

func (r *Redis) SetFailed(ctx context.Context, jobID string, reason string) error {
	return r.update(ctx, jobID, models.JobStateFailed, func(rec *RedisRecord) {
		rec.Error = reason
	})
}

// Get returns the mirrored record.
func (r *Redis) Get(ctx context.Context, jobID string) (*RedisRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.get(ctx, jobID)
}

func (r *Redis) get(ctx context.Context, jobID string) (*RedisRecord, error) {
	val, err := r.client.Get(ctx, r.jobKey(jobID)).Bytes()
	if err != nil {
		return nil, err
	}
	var rec RedisRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Recent returns up to n job ids, newest first.
func (r *Redis) Recent(ctx context.Context, n int64) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.ZRevRange(ctx, redisJobsSet, 0, n-1).Result()
}

func (r *Redis) update(ctx context.Context, jobID string, state models.JobState, mutate func(*RedisRecord)) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now().UTC()
	rec, err := r.get(ctx, jobID)
	if errors.Is(err, redis.Nil) {
		rec = &RedisRecord{ID: jobID, CreatedAt: now}
	} else if err != nil {
		return fmt.Errorf("redis get job %s: %w", jobID, err)
	}
	rec.State = state
	rec.UpdatedAt = now
	if mutate != nil {
		mutate(rec)
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.jobKey(jobID), b, 0)
	pipe.ZAddNX(ctx, redisJobsSet, redis.Z{Score: float64(rec.CreatedAt.Unix()), Member: jobID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write job %s: %w", jobID, err)
	}
	return nil
}
