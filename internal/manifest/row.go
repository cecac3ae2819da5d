package manifest

import (
	"strconv"
	"strings"
	"time"
)

// Status represents the lifecycle of a manifest row.
type Status string

const (
	StatusPending     Status = "pending"
	StatusVerified    Status = "verified"
	StatusUnverified  Status = "unverified"
	StatusDuplicate   Status = "duplicate"
	StatusKept        Status = "kept"
	StatusQuarantined Status = "quarantined"
	StatusDeleted     Status = "deleted"
	StatusError       Status = "error"
)

var allStatuses = []Status{
	StatusPending,
	StatusVerified,
	StatusUnverified,
	StatusDuplicate,
	StatusKept,
	StatusQuarantined,
	StatusDeleted,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Action records what the sweep stage did to a row.
type Action string

const (
	ActionKept        Action = "kept"
	ActionQuarantined Action = "quarantined"
	ActionDeleted     Action = "deleted"
	ActionError       Action = "error"
)

// Row is one physical file instance under consideration.
type Row struct {
	SourcePath    string
	ArchivePath   string
	SizeBytes     int64
	ContentDigest string

	// Verification output fields.
	Status     Status
	Reason     string
	RunID      string
	VerifiedAt time.Time

	// Sweep output fields.
	ActionTaken    Action
	QuarantinePath string
	ProcessedAt    time.Time

	Notes string
}

// Schema names the column set a manifest carries. Column order is part of
// the wire contract.
type Schema struct {
	Name    string
	Version int
	Columns []string
}

var (
	// SchemaInput is the manifest produced by discovery.
	SchemaInput = Schema{
		Name:    "input",
		Version: 1,
		Columns: []string{"source_path", "archive_path", "size_bytes", "content_digest"},
	}
	// SchemaVerification extends the input columns with verification results.
	SchemaVerification = Schema{
		Name:    "verification",
		Version: 1,
		Columns: []string{
			"source_path", "archive_path", "size_bytes", "content_digest",
			"status", "reason", "run_id", "verified_at_utc",
		},
	}
	// SchemaSweep extends the verification columns with sweep outcomes.
	SchemaSweep = Schema{
		Name:    "sweep",
		Version: 1,
		Columns: []string{
			"source_path", "archive_path", "size_bytes", "content_digest",
			"status", "reason", "run_id", "verified_at_utc",
			"action_taken", "quarantine_path", "processed_at_utc", "notes",
		},
	}
)

// record serializes the row for this schema's column order.
func (s Schema) record(row Row) []string {
	out := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		out = append(out, row.field(column))
	}
	return out
}

func (r Row) field(column string) string {
	switch column {
	case "source_path":
		return r.SourcePath
	case "archive_path":
		return r.ArchivePath
	case "size_bytes":
		return strconv.FormatInt(r.SizeBytes, 10)
	case "content_digest":
		return r.ContentDigest
	case "status":
		return string(r.Status)
	case "reason":
		return r.Reason
	case "run_id":
		return r.RunID
	case "verified_at_utc":
		return formatTime(r.VerifiedAt)
	case "action_taken":
		return string(r.ActionTaken)
	case "quarantine_path":
		return r.QuarantinePath
	case "processed_at_utc":
		return formatTime(r.ProcessedAt)
	case "notes":
		return r.Notes
	default:
		return ""
	}
}

func (r *Row) setField(column, value string) {
	switch column {
	case "source_path":
		r.SourcePath = value
	case "archive_path":
		r.ArchivePath = value
	case "size_bytes":
		if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			r.SizeBytes = parsed
		}
	case "content_digest":
		r.ContentDigest = strings.ToLower(strings.TrimSpace(value))
	case "status":
		if status, ok := ParseStatus(value); ok {
			r.Status = status
		}
	case "reason":
		r.Reason = value
	case "run_id":
		r.RunID = strings.TrimSpace(value)
	case "verified_at_utc":
		r.VerifiedAt = parseTime(value)
	case "action_taken":
		r.ActionTaken = Action(strings.TrimSpace(value))
	case "quarantine_path":
		r.QuarantinePath = value
	case "processed_at_utc":
		r.ProcessedAt = parseTime(value)
	case "notes":
		r.Notes = value
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
