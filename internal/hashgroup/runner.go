package hashgroup

import (
	"context"

	"keeper/internal/manifest"
	"keeper/internal/pipeline"
)

// ResolveManifest reads a verified manifest, classifies every row against
// the group store, and writes the classified rows to outputPath. The group
// table itself is the primary output; the written manifest is the audit
// record of what was decided.
func (r *Resolver) ResolveManifest(ctx context.Context, inputPath, outputPath string) (Summary, error) {
	rows, err := manifest.ReadAll(inputPath, manifest.SchemaVerification)
	if err != nil {
		return Summary{}, err
	}

	outcomes, summary, err := r.Resolve(ctx, rows)
	if err != nil {
		return summary, err
	}

	writer, err := manifest.OpenWriter(outputPath, manifest.SchemaVerification)
	if err != nil {
		return summary, err
	}
	defer writer.Close()

	for _, outcome := range outcomes {
		row := outcome.Row
		row.Status = outcome.Status
		if outcome.Note != "" {
			row.Reason = outcome.Note
		}
		if err := writer.Write(row); err != nil {
			return summary, err
		}
	}
	if err := writer.Close(); err != nil {
		return summary, err
	}

	if summary.Errors > 0 {
		return summary, pipeline.Wrap(pipeline.ErrIO, "resolve", "batch",
			"one or more rows could not be classified", nil)
	}
	return summary, nil
}
