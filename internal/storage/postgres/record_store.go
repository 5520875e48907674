package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/gamecatalog/internal/catalog"
)

// RecordStore upserts catalog records keyed by slug.
type RecordStore struct {
	pool  execer
	table string
}

// NewRecordStore builds a RecordStore on an existing pool.
func NewRecordStore(pool execer, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, "game_records")
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: name}, nil
}

// UpsertRecord inserts rec or replaces the row already stored for its slug.
func (s *RecordStore) UpsertRecord(ctx context.Context, rec catalog.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if rec.Slug == "" {
		return fmt.Errorf("record slug is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	slug,
	canonical_url,
	name,
	description,
	publisher,
	cover_image_url,
	play_url,
	tags,
	fetched_at,
	error
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (slug) DO UPDATE SET
	canonical_url = EXCLUDED.canonical_url,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	publisher = EXCLUDED.publisher,
	cover_image_url = EXCLUDED.cover_image_url,
	play_url = EXCLUDED.play_url,
	tags = EXCLUDED.tags,
	fetched_at = EXCLUDED.fetched_at,
	error = EXCLUDED.error`, s.table)

	args := []any{
		rec.Slug,
		rec.CanonicalURL,
		rec.Name,
		rec.Description,
		rec.Publisher,
		rec.CoverImageURL,
		rec.PlayURL,
		rec.Tags,
		rec.FetchedAt,
		rec.Error,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert record %q: %w", rec.Slug, err)
	}
	return nil
}
