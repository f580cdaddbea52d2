package cmdutil

import (
	"errors"
	"fmt"
	"time"

	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/pipeline"
	"github.com/appforge/cli/internal/registry"
)

// PrintError prints err in a user-friendly format. Detail errors are
// printed as a short summary line followed by their structured body.
func PrintError(msg string, err error) {
	var detail *oerrors.DetailError
	if errors.As(err, &detail) {
		output.Error(fmt.Sprintf("%s: %s", msg, detail.Type))
		output.Details(detail.Error())
		return
	}
	output.Error(msg, "error", err)
}

// WriteResult prints the generated tree and the artifact of a completed
// run.
func WriteResult(res *pipeline.Result) {
	output.Println(output.RenderPathTree(res.ProjectID, res.Paths))
	output.Println(output.FormatRunLine(res.ProjectID, res.RunID, string(res.Status)))
	if res.Artifact != nil {
		output.Println(output.FormatCheckmark(fmt.Sprintf("%s (%d files, %s)",
			res.Artifact.Path, res.Artifact.Files, res.Artifact.Digest)))
	}
}

// RunRows converts records into table rows.
func RunRows(recs []*registry.Record, now time.Time) []output.RunRow {
	rows := make([]output.RunRow, 0, len(recs))
	for _, r := range recs {
		msg := r.Error
		if r.ErrorKind != "" {
			msg = r.ErrorKind + ": " + r.Error
		}
		rows = append(rows, output.RunRow{
			ProjectID: r.ProjectID,
			RunID:     r.RunID,
			Status:    string(r.Status),
			Artifact:  r.ArtifactName,
			Age:       FormatAge(now.Sub(r.UpdatedAt)),
			Message:   msg,
		})
	}
	return rows
}

// FormatAge converts a duration to a human-readable string (e.g., "5m", "2h", "3d").
func FormatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		hours := int(d.Hours())
		mins := int(d.Minutes()) - hours*60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	default:
		days := int(d.Hours() / 24)
		return fmt.Sprintf("%dd", days)
	}
}
