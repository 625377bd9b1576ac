package tracker

import (
	"context"
	"fmt"

	"streamcast/logger"
	"streamcast/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// execer is the subset of *pgxpool.Pool the tracker needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlSetProcessing = `UPDATE posts SET processing_status = $2, updated_at = now() WHERE unique_id = $1`
	sqlSetReady      = `UPDATE posts SET processing_status = $2, dash_manifest_url = $3, hls_playlist_url = $4, thumbnail_url = $5, updated_at = now() WHERE unique_id = $1`
	sqlSetFailed     = `UPDATE posts SET processing_status = $2, updated_at = now() WHERE unique_id = $1`
)

// Postgres writes job state onto the post row that owns the media. The row
// is created by the product API; a missing row is logged, not an error.
type Postgres struct {
	db   execer
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to dsn.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: pool, pool: pool}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) SetProcessing(ctx context.Context, jobID string) error {
	return p.exec(ctx, jobID, sqlSetProcessing, jobID, string(models.JobStateProcessing))
}

func (p *Postgres) SetReady(ctx context.Context, jobID string, urls models.PublishedURLs) error {
	return p.exec(ctx, jobID, sqlSetReady, jobID, string(models.JobStateReady), urls.ManifestURLA, urls.ManifestURLB, urls.ThumbnailURL)
}

func (p *Postgres) SetFailed(ctx context.Context, jobID string, reason string) error {
	return p.exec(ctx, jobID, sqlSetFailed, jobID, string(models.JobStateFailed))
}

func (p *Postgres) exec(ctx context.Context, jobID, sql string, args ...any) error {
	tag, err := p.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update post %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		logger.Warnf("No post row with unique_id %s to update", jobID)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
