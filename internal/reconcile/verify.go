package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/ALT-F4-LLC/lp2jira/internal/compile"
	"github.com/ALT-F4-LLC/lp2jira/internal/model"
	"github.com/ALT-F4-LLC/lp2jira/internal/tracker"
)

// Mismatch is an imported issue whose status differs from the export.
type Mismatch struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Report is the outcome of a verify pass.
type Report struct {
	Checked        int        `json:"checked"`
	OK             int        `json:"ok"`
	NotFound       int        `json:"not_found"`
	StatusMismatch int        `json:"status_mismatch"`
	Exceptions     int        `json:"exceptions"`
	Missing        []string   `json:"missing,omitempty"`
	Mismatches     []Mismatch `json:"mismatches,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	Interrupted    bool       `json:"interrupted,omitempty"`
}

// Verify checks, without writing anything, that every issue of the compiled
// bundle exists in the target with the expected status. defaultStatus is
// expected of stories exported without a status.
func (r *Reconciler) Verify(ctx context.Context, bundlePath, defaultStatus string) (Report, error) {
	var rep Report
	exported, err := compile.ReadBundle(bundlePath)
	if err != nil {
		return rep, fmt.Errorf("read export bundle: %w", err)
	}

	for _, doc := range exported.Issues() {
		if ctx.Err() != nil {
			rep.Interrupted = true
			break
		}
		rep.Checked++
		id := doc.String("externalId")

		target, err := r.Locate(ctx, doc)
		if errors.Is(err, tracker.ErrNotFound) {
			rep.NotFound++
			rep.Missing = append(rep.Missing, id)
			r.logger.Warn("issue not imported", "id", id)
			continue
		}
		if err != nil {
			rep.Exceptions++
			rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", id, err))
			r.logger.Error("verify failed", "id", id, "err", err)
			continue
		}

		want := expectedStatus(doc, defaultStatus)
		got := target.Fields.String("status")
		if got != want {
			rep.StatusMismatch++
			rep.Mismatches = append(rep.Mismatches, Mismatch{ID: id, Key: target.Key, Expected: want, Actual: got})
			r.logger.Warn("status mismatch", "id", id, "key", target.Key, "expected", want, "actual", got)
			continue
		}
		rep.OK++
	}

	r.logger.Info("verify complete", "checked", rep.Checked, "ok", rep.OK,
		"not_found", rep.NotFound, "status_mismatch", rep.StatusMismatch, "exceptions", rep.Exceptions)
	return rep, nil
}

func expectedStatus(doc model.Document, defaultStatus string) string {
	status := doc.String("status")
	if status == "" && model.IssueType(doc.String("issueType")) == model.IssueTypeStory {
		return defaultStatus
	}
	return status
}
