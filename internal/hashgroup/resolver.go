package hashgroup

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"keeper/internal/logging"
	"keeper/internal/manifest"
	"keeper/internal/pipeline"
)

// Outcome is the resolver's classification of one verified row.
type Outcome struct {
	Row    manifest.Row
	Status manifest.Status
	Note   string
}

// Summary aggregates one Resolve call.
type Summary struct {
	Processed int
	Kept      int
	Duplicate int
	Pending   int
	Errors    int
}

// Resolver assigns verified rows to hash groups and selects canonicals.
type Resolver struct {
	store       Store
	archiveRoot string
	logger      *slog.Logger
	now         func() time.Time
}

// NewResolver builds a resolver over the given group store. archiveRoot
// decides which members are eligible for canonical selection.
func NewResolver(store Store, archiveRoot string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		store:       store,
		archiveRoot: strings.TrimRight(archiveRoot, "/"),
		logger:      logger.With(logging.String(logging.FieldComponent, "resolver")),
		now:         time.Now,
	}
}

// Resolve processes verified rows in manifest order. It is purely additive:
// members are appended, canonicals are set at most once, and established
// canonicals are never reassigned. Rows that are not in verified status are
// classified as errors and the batch continues.
func (r *Resolver) Resolve(ctx context.Context, rows []manifest.Row) ([]Outcome, Summary, error) {
	outcomes := make([]Outcome, 0, len(rows))
	var summary Summary

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return outcomes, summary, err
		}
		outcome := r.resolveRow(ctx, row)
		switch outcome.Status {
		case manifest.StatusKept:
			summary.Kept++
		case manifest.StatusDuplicate:
			summary.Duplicate++
		case manifest.StatusVerified:
			summary.Pending++
		case manifest.StatusError:
			summary.Errors++
		}
		summary.Processed++
		outcomes = append(outcomes, outcome)
	}
	return outcomes, summary, nil
}

func (r *Resolver) resolveRow(ctx context.Context, row manifest.Row) Outcome {
	if row.Status != manifest.StatusVerified {
		return Outcome{
			Row:    row,
			Status: manifest.StatusError,
			Note:   pipeline.Wrap(pipeline.ErrInvalidRowState, "resolve", "classify", "row is "+string(row.Status)+", expected verified", nil).Error(),
		}
	}
	if row.ContentDigest == "" {
		return Outcome{Row: row, Status: manifest.StatusError, Note: "row has no content digest"}
	}

	member := r.memberForRow(row)
	if err := r.store.UpsertMember(ctx, row.ContentDigest, member); err != nil {
		return Outcome{Row: row, Status: manifest.StatusError, Note: err.Error()}
	}

	group, err := r.store.GetByDigest(ctx, row.ContentDigest)
	if err != nil {
		return Outcome{Row: row, Status: manifest.StatusError, Note: err.Error()}
	}

	if !group.HasCanonical() {
		if candidate, ok := selectCanonical(group); ok {
			set, err := r.store.TrySetCanonical(ctx, row.ContentDigest, candidate)
			if err != nil {
				return Outcome{Row: row, Status: manifest.StatusError, Note: err.Error()}
			}
			if set {
				group.CanonicalPath = candidate
				r.logger.Debug("canonical selected",
					logging.String("digest", row.ContentDigest),
					logging.String("canonical", candidate))
			} else {
				// Lost the race to a concurrent resolver; re-read the winner.
				group, err = r.store.GetByDigest(ctx, row.ContentDigest)
				if err != nil {
					return Outcome{Row: row, Status: manifest.StatusError, Note: err.Error()}
				}
			}
		}
	}

	switch {
	case !group.HasCanonical():
		return Outcome{Row: row, Status: manifest.StatusVerified, Note: "canonical pending: no archive-resident member yet"}
	case group.CanonicalPath == member.Path:
		return Outcome{Row: row, Status: manifest.StatusKept}
	default:
		return Outcome{Row: row, Status: manifest.StatusDuplicate, Note: "canonical is " + group.CanonicalPath}
	}
}

func (r *Resolver) memberForRow(row manifest.Row) Member {
	path := row.ArchivePath
	if path == "" {
		path = row.SourcePath
	}
	recordedAt := row.VerifiedAt
	if recordedAt.IsZero() {
		recordedAt = r.now()
	}
	return Member{
		Path:            path,
		ArchiveResident: row.ArchivePath != "" && r.underArchiveRoot(row.ArchivePath),
		SizeBytes:       row.SizeBytes,
		RecordedAt:      recordedAt,
	}
}

func (r *Resolver) underArchiveRoot(path string) bool {
	if r.archiveRoot == "" {
		return true
	}
	return path == r.archiveRoot || strings.HasPrefix(path, r.archiveRoot+"/")
}

// selectCanonical applies the designation policy: only archive-resident
// members are eligible; ties break by earliest recorded timestamp, then
// lexicographic path.
func selectCanonical(group *Group) (string, bool) {
	candidates := make([]Member, 0, len(group.Members))
	for _, member := range group.Members {
		if member.ArchiveResident {
			candidates = append(candidates, member)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].RecordedAt.Equal(candidates[j].RecordedAt) {
			return candidates[i].RecordedAt.Before(candidates[j].RecordedAt)
		}
		return candidates[i].Path < candidates[j].Path
	})
	return candidates[0].Path, true
}
