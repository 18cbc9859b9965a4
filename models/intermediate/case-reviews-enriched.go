// Package intermediate builds the enrichment and daily aggregation feeds
// between staging and the marts.
package intermediate

import (
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/paracelsus/martpipe/components"
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

// CaseReviewsEnrichedColumns is the output contract of the enrichment feed.
var CaseReviewsEnrichedColumns = []string{
	"case_id", "provider_id", "patient_mrn", "case_type", "case_status",
	"priority", "opened_at", "closed_at",
	"review_id", "review_physician_id", "review_date", "review_status",
	"review_notes", "due_date", "completed_at",
	"provider_name", "provider_type", "supervising_physician_id",
	"physician_name", "physician_specialty",
	"is_overdue", "days_to_complete_review", "days_from_due_date",
}

type CaseReviewsEnrichedConfig struct {
	Log         logger.Logger
	Cases       *table.Table
	CaseReviews *table.Table
	Providers   *table.Table
	Physicians  *table.Table
	AsOf        time.Time // the run's notion of today; derivations depend on it.
}

// BuildCaseReviewsEnriched left-joins every case to its reviews (fanning
// out when a case has several), to its provider and to the provider's
// supervising physician, then derives the overdue flags and day deltas.
// A case with no review appears exactly once with null review fields and
// is_overdue false.
func BuildCaseReviewsEnriched(cfg *CaseReviewsEnrichedConfig) *table.Table {
	reviewKeys := om.NewOrderedMap()
	reviewKeys.Set("case_id", "case_id")
	withReviews, _ := components.NewLookupJoin(&components.LookupJoinConfig{
		Log:        cfg.Log,
		Name:       "join cases to case_reviews",
		InputChan:  cfg.Cases.Chan(),
		LookupChan: cfg.CaseReviews.Chan(),
		JoinKeys:   reviewKeys,
		LookupFields: []string{
			"review_id", "physician_id:review_physician_id", "review_date",
			"review_status", "notes:review_notes", "due_date", "completed_at",
		},
		JoinType: components.LeftJoin,
	})
	providerKeys := om.NewOrderedMap()
	providerKeys.Set("provider_id", "provider_id")
	withProviders, _ := components.NewLookupJoin(&components.LookupJoinConfig{
		Log:        cfg.Log,
		Name:       "join cases to providers",
		InputChan:  withReviews,
		LookupChan: cfg.Providers.Chan(),
		JoinKeys:   providerKeys,
		LookupFields: []string{
			"full_name:provider_name", "provider_type", "supervising_physician_id",
		},
		JoinType: components.LeftJoin,
	})
	physicianKeys := om.NewOrderedMap()
	physicianKeys.Set("supervising_physician_id", "physician_id")
	withPhysicians, _ := components.NewLookupJoin(&components.LookupJoinConfig{
		Log:        cfg.Log,
		Name:       "join cases to physicians",
		InputChan:  withProviders,
		LookupChan: cfg.Physicians.Chan(),
		JoinKeys:   physicianKeys,
		LookupFields: []string{
			"full_name:physician_name", "specialty:physician_specialty",
		},
		JoinType: components.LeftJoin,
	})
	derived, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:         cfg.Log,
		Name:        "derive review flags",
		InputChan:   withPhysicians,
		NormalizeFn: deriveReviewFlags(cfg.AsOf),
	})
	return table.FromChan("int_case_reviews_enriched", CaseReviewsEnrichedColumns, derived)
}

// deriveReviewFlags computes is_overdue, days_to_complete_review and
// days_from_due_date on each enriched row, relative to asOf.
func deriveReviewFlags(asOf time.Time) components.NormalizeFunc {
	today := stream.Day(asOf)
	return func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
		var castErrs []*stream.CastError
		status, hasStatus, err := rec.GetString("review_status")
		if err != nil {
			castErrs = append(castErrs, err.(*stream.CastError))
			hasStatus = false
		}
		dueDate, hasDue, err := rec.GetDate("due_date")
		if err != nil {
			castErrs = append(castErrs, err.(*stream.CastError))
			hasDue = false
		}
		completedAt, hasCompleted, err := rec.GetTime("completed_at")
		if err != nil {
			castErrs = append(castErrs, err.(*stream.CastError))
			hasCompleted = false
		}
		openedAt, hasOpened, err := rec.GetTime("opened_at")
		if err != nil {
			castErrs = append(castErrs, err.(*stream.CastError))
			hasOpened = false
		}
		// A case without a review is not overdue.
		isOverdue := false
		if hasStatus {
			switch status {
			case c.ReviewStatusOverdue:
				isOverdue = true
			case c.ReviewStatusPending:
				isOverdue = hasDue && dueDate.Before(today)
			}
		}
		rec.SetData("is_overdue", isOverdue)
		// Day count from case creation to review completion, completed only.
		if hasStatus && status == c.ReviewStatusCompleted && hasCompleted && hasOpened {
			rec.SetData("days_to_complete_review", daysBetween(openedAt, completedAt))
		} else {
			rec.SetData("days_to_complete_review", nil)
		}
		// Signed delta against the due date; null for pending and no-review rows.
		switch {
		case hasStatus && status == c.ReviewStatusCompleted && hasCompleted && hasDue:
			rec.SetData("days_from_due_date", daysBetween(dueDate, completedAt))
		case hasStatus && status == c.ReviewStatusOverdue && hasDue:
			rec.SetData("days_from_due_date", daysBetween(dueDate, today))
		default:
			rec.SetData("days_from_due_date", nil)
		}
		return rec, castErrs, nil
	}
}

// daysBetween returns the signed count of whole calendar days from a to b.
func daysBetween(a, b time.Time) int64 {
	return int64(stream.Day(b).Sub(stream.Day(a)).Hours() / 24)
}
