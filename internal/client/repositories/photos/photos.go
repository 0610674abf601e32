// Package photos is the local blob cache for entry photos. Persisted entries
// only carry models.PhotoStoredMarker; the bytes live here keyed by entry id.
package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// Store is the blob cache used by the sync services.
type Store interface {
	// Has reports whether a photo is cached for entryID.
	Has(ctx context.Context, entryID string) (bool, error)
	// Get returns the photo, or (nil, nil) when nothing is cached.
	Get(ctx context.Context, entryID string) ([]byte, error)
	// Put saves a photo; an existing one is replaced.
	Put(ctx context.Context, entryID string, data []byte) error
	// Delete drops a cached photo.
	Delete(ctx context.Context, entryID string) error
}

// SQLiteRepository stores photos in the photos table.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Has(ctx context.Context, entryID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM photos WHERE entry_id = ?`, entryID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up photo[%s]: %w", entryID, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, entryID string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM photos WHERE entry_id = ?`, entryID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo[%s]: %w", entryID, err)
	}
	return data, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, entryID string, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO photos (entry_id, data, created_at) VALUES (?, ?, ?)
		ON CONFLICT(entry_id) DO UPDATE SET data = excluded.data
	`, entryID, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put photo[%s]: %w", entryID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, entryID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE entry_id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete photo[%s]: %w", entryID, err)
	}
	return nil
}

// Cached fronts a Store with an in-memory existence cache so the poll path
// can skip re-saving photos it already holds without a database round trip.
type Cached struct {
	next  Store
	known *cache.Cache
}

// NewCached wraps next; existence answers are remembered for ttl.
func NewCached(next Store, ttl time.Duration) *Cached {
	return &Cached{next: next, known: cache.New(ttl, 2*ttl)}
}

func (c *Cached) Has(ctx context.Context, entryID string) (bool, error) {
	if _, found := c.known.Get(entryID); found {
		return true, nil
	}
	ok, err := c.next.Has(ctx, entryID)
	if err != nil {
		return false, err
	}
	if ok {
		c.known.Set(entryID, struct{}{}, cache.DefaultExpiration)
	}
	return ok, nil
}

func (c *Cached) Get(ctx context.Context, entryID string) ([]byte, error) {
	return c.next.Get(ctx, entryID)
}

func (c *Cached) Put(ctx context.Context, entryID string, data []byte) error {
	if err := c.next.Put(ctx, entryID, data); err != nil {
		return err
	}
	c.known.Set(entryID, struct{}{}, cache.DefaultExpiration)
	return nil
}

func (c *Cached) Delete(ctx context.Context, entryID string) error {
	c.known.Delete(entryID)
	return c.next.Delete(ctx, entryID)
}

// Pruner drops the photos of entries that left the ledger.
type Pruner struct {
	store  Store
	logger logging.Logger
}

func NewPruner(store Store, logger logging.Logger) *Pruner {
	return &Pruner{store: store, logger: logger}
}

// DeletePhotos removes the photo of every listed entry. Failures are logged
// and the remaining ids are still tried.
func (p *Pruner) DeletePhotos(ctx context.Context, entryIDs []string) {
	for _, id := range entryIDs {
		if err := p.store.Delete(ctx, id); err != nil {
			p.logger.Warn(ctx, "failed to delete cached photo", "entry", id, "error", err)
		}
	}
}
