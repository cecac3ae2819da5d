package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keeper/internal/hashgroup"
)

// Compile-time check that the store satisfies the resolver's interface.
var _ hashgroup.Store = (*Store)(nil)

// GetByDigest returns the hash group for digest with members in insertion
// order, or nil when the digest has never been observed.
func (s *Store) GetByDigest(ctx context.Context, digest string) (*hashgroup.Group, error) {
	var canonical sql.NullString
	err := s.db.QueryRowContext(
		ctx,
		`SELECT canonical_path FROM hash_groups WHERE digest = ?`,
		digest,
	).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get hash group: %w", err)
	}

	group := &hashgroup.Group{Digest: digest, CanonicalPath: canonical.String}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT path, archive_resident, size_bytes, recorded_at
         FROM hash_group_members WHERE digest = ? ORDER BY rowid`,
		digest,
	)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			path        string
			resident    int
			sizeBytes   int64
			recordedRaw string
		)
		if err := rows.Scan(&path, &resident, &sizeBytes, &recordedRaw); err != nil {
			return nil, err
		}
		member := hashgroup.Member{
			Path:            path,
			ArchiveResident: resident != 0,
			SizeBytes:       sizeBytes,
		}
		if recorded, err := time.Parse(time.RFC3339Nano, recordedRaw); err == nil {
			member.RecordedAt = recorded
		}
		group.Members = append(group.Members, member)
	}
	return group, rows.Err()
}

// UpsertMember adds a member to the digest's group, creating the group when
// absent. Re-adding an existing path leaves the original record untouched
// so insertion order stays discovery order.
func (s *Store) UpsertMember(ctx context.Context, digest string, member hashgroup.Member) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO hash_groups (digest) VALUES (?) ON CONFLICT(digest) DO NOTHING`,
		digest,
	); err != nil {
		return fmt.Errorf("upsert hash group: %w", err)
	}

	resident := 0
	if member.ArchiveResident {
		resident = 1
	}
	recordedAt := member.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO hash_group_members (digest, path, archive_resident, size_bytes, recorded_at)
         VALUES (?, ?, ?, ?, ?) ON CONFLICT(digest, path) DO NOTHING`,
		digest,
		member.Path,
		resident,
		member.SizeBytes,
		recordedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert group member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// TrySetCanonical sets the canonical path for digest if none is designated.
// The update is conditional on canonical_path being NULL, so at most one
// canonical can ever win even under concurrent resolvers.
func (s *Store) TrySetCanonical(ctx context.Context, digest, path string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE hash_groups SET canonical_path = ? WHERE digest = ? AND canonical_path IS NULL`,
		path,
		digest,
	)
	if err != nil {
		return false, fmt.Errorf("set canonical: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	var canonical sql.NullString
	err = s.db.QueryRowContext(
		ctx,
		`SELECT canonical_path FROM hash_groups WHERE digest = ?`,
		digest,
	).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("set canonical: unknown digest %q", digest)
	}
	if err != nil {
		return false, fmt.Errorf("read canonical: %w", err)
	}
	return canonical.String == path, nil
}

// Stats aggregates group table counts for diagnostics.
func (s *Store) Stats(ctx context.Context) (hashgroup.Stats, error) {
	var stats hashgroup.Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM hash_groups`).Scan(&stats.Groups)
	if err != nil {
		return stats, fmt.Errorf("count groups: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM hash_group_members`).Scan(&stats.Members)
	if err != nil {
		return stats, fmt.Errorf("count members: %w", err)
	}
	err = s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM hash_groups WHERE canonical_path IS NOT NULL`,
	).Scan(&stats.WithCanonical)
	if err != nil {
		return stats, fmt.Errorf("count canonicals: %w", err)
	}
	err = s.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(SUM(n - 1), 0) FROM (
            SELECT COUNT(1) AS n FROM hash_group_members m
            JOIN hash_groups g ON g.digest = m.digest
            WHERE g.canonical_path IS NOT NULL GROUP BY m.digest
        )`,
	).Scan(&stats.Duplicates)
	if err != nil {
		return stats, fmt.Errorf("count duplicates: %w", err)
	}
	return stats, nil
}
