package hashgroup

import (
	"context"
	"time"
)

// Member is one known file carrying a group's content.
type Member struct {
	Path            string
	ArchiveResident bool
	SizeBytes       int64
	RecordedAt      time.Time
}

// Group is the set of all known files sharing one content digest.
type Group struct {
	Digest        string
	CanonicalPath string
	// Members in insertion order; insertion order is discovery order.
	Members []Member
}

// HasCanonical reports whether a canonical file has been designated.
func (g *Group) HasCanonical() bool {
	return g != nil && g.CanonicalPath != ""
}

// Stats summarizes the group table.
type Stats struct {
	Groups        int
	Members       int
	WithCanonical int
	Duplicates    int
}

// Store persists hash groups. Implementations must keep at most one
// canonical path per digest under concurrent callers.
type Store interface {
	// GetByDigest returns the group for digest, or nil when unknown.
	GetByDigest(ctx context.Context, digest string) (*Group, error)
	// UpsertMember adds a member to the digest's group, creating the group
	// when absent. Re-adding an existing path is idempotent.
	UpsertMember(ctx context.Context, digest string, member Member) error
	// TrySetCanonical sets the canonical path if none is designated yet.
	// It reports whether the group's canonical path equals path afterward,
	// so a repeated call with the established canonical returns true.
	TrySetCanonical(ctx context.Context, digest, path string) (bool, error)
	// Stats aggregates table counts for diagnostics.
	Stats(ctx context.Context) (Stats, error)
}
