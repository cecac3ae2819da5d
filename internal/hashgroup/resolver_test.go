package hashgroup_test

import (
	"context"
	"testing"
	"time"

	"keeper/internal/hashgroup"
	"keeper/internal/manifest"
)

func verifiedRow(source, archive, digest string, at time.Time) manifest.Row {
	return manifest.Row{
		SourcePath:    source,
		ArchivePath:   archive,
		SizeBytes:     64,
		ContentDigest: digest,
		Status:        manifest.StatusVerified,
		RunID:         "run-1",
		VerifiedAt:    at,
	}
}

func TestResolveSelectsArchiveResidentCanonical(t *testing.T) {
	store := hashgroup.NewMemoryStore()
	resolver := hashgroup.NewResolver(store, "/archive", nil)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	rows := []manifest.Row{
		verifiedRow("/src/a.jpg", "/archive/2016/a.jpg", "digest-x", now),
		verifiedRow("/src/b.jpg", "", "digest-x", now.Add(time.Minute)),
	}

	outcomes, summary, err := resolver.Resolve(context.Background(), rows)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if outcomes[0].Status != manifest.StatusKept {
		t.Fatalf("archive-resident row should be kept, got %s", outcomes[0].Status)
	}
	if outcomes[1].Status != manifest.StatusDuplicate {
		t.Fatalf("source-only row should be duplicate, got %s", outcomes[1].Status)
	}
	if summary.Kept != 1 || summary.Duplicate != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	group, err := store.GetByDigest(context.Background(), "digest-x")
	if err != nil {
		t.Fatalf("GetByDigest failed: %v", err)
	}
	if group.CanonicalPath != "/archive/2016/a.jpg" {
		t.Fatalf("unexpected canonical: %q", group.CanonicalPath)
	}
	if len(group.Members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(group.Members))
	}
}

func TestResolveNeverReassignsCanonical(t *testing.T) {
	store := hashgroup.NewMemoryStore()
	resolver := hashgroup.NewResolver(store, "/archive", nil)
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	first := []manifest.Row{verifiedRow("/src/a.jpg", "/archive/2016/a.jpg", "digest-x", base)}
	if _, _, err := resolver.Resolve(context.Background(), first); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A later archive-resident row with an earlier timestamp and smaller
	// path must still lose: canonical selection is permanent.
	second := []manifest.Row{verifiedRow("/src/0.jpg", "/archive/2015/0.jpg", "digest-x", base.Add(-time.Hour))}
	outcomes, _, err := resolver.Resolve(context.Background(), second)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if outcomes[0].Status != manifest.StatusDuplicate {
		t.Fatalf("expected duplicate, got %s", outcomes[0].Status)
	}

	group, _ := store.GetByDigest(context.Background(), "digest-x")
	if group.CanonicalPath != "/archive/2016/a.jpg" {
		t.Fatalf("canonical was reassigned to %q", group.CanonicalPath)
	}
}

func TestResolveTieBreaksByTimestampThenPath(t *testing.T) {
	store := hashgroup.NewMemoryStore()
	resolver := hashgroup.NewResolver(store, "/archive", nil)
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	// Seed both members before any canonical exists so selection sees the
	// full candidate set. The second has an earlier timestamp.
	ctx := context.Background()
	seed := []manifest.Row{
		verifiedRow("/src/late.jpg", "/archive/2016/late.jpg", "digest-y", base),
	}
	if err := store.UpsertMember(ctx, "digest-y", hashgroup.Member{
		Path:            "/archive/2015/early.jpg",
		ArchiveResident: true,
		RecordedAt:      base.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("UpsertMember failed: %v", err)
	}

	outcomes, _, err := resolver.Resolve(ctx, seed)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if outcomes[0].Status != manifest.StatusDuplicate {
		t.Fatalf("expected later member to be duplicate, got %s", outcomes[0].Status)
	}
	group, _ := store.GetByDigest(ctx, "digest-y")
	if group.CanonicalPath != "/archive/2015/early.jpg" {
		t.Fatalf("expected earliest member canonical, got %q", group.CanonicalPath)
	}
}

func TestResolveSourceOnlyGroupStaysPending(t *testing.T) {
	store := hashgroup.NewMemoryStore()
	resolver := hashgroup.NewResolver(store, "/archive", nil)

	rows := []manifest.Row{verifiedRow("/src/only.jpg", "", "digest-z", time.Time{})}
	outcomes, summary, err := resolver.Resolve(context.Background(), rows)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if outcomes[0].Status != manifest.StatusVerified {
		t.Fatalf("expected pending row to stay verified, got %s", outcomes[0].Status)
	}
	if summary.Pending != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestResolveRejectsUnverifiedRows(t *testing.T) {
	store := hashgroup.NewMemoryStore()
	resolver := hashgroup.NewResolver(store, "/archive", nil)

	row := verifiedRow("/src/a.jpg", "/archive/a.jpg", "digest-q", time.Time{})
	row.Status = manifest.StatusPending

	outcomes, summary, err := resolver.Resolve(context.Background(), []manifest.Row{row})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if outcomes[0].Status != manifest.StatusError {
		t.Fatalf("expected error outcome, got %s", outcomes[0].Status)
	}
	if summary.Errors != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// Invalid rows must not pollute the group table.
	group, _ := store.GetByDigest(context.Background(), "digest-q")
	if group != nil {
		t.Fatal("unverified row must not create a group")
	}
}

func TestUpsertMemberIdempotent(t *testing.T) {
	store := hashgroup.NewMemoryStore()
	ctx := context.Background()
	member := hashgroup.Member{Path: "/archive/a.jpg", ArchiveResident: true, RecordedAt: time.Now()}

	if err := store.UpsertMember(ctx, "d", member); err != nil {
		t.Fatalf("UpsertMember failed: %v", err)
	}
	if err := store.UpsertMember(ctx, "d", member); err != nil {
		t.Fatalf("UpsertMember failed: %v", err)
	}
	group, _ := store.GetByDigest(ctx, "d")
	if len(group.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(group.Members))
	}
}
