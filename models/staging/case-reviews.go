package staging

import (
	"github.com/paracelsus/martpipe/stream"
)

// CaseReviews normalizes the supervision review replica table. Dates are
// truncated to UTC calendar days where the source holds day precision.
var CaseReviews = Model{
	Table: "stg_case_reviews",
	Columns: []string{
		"review_id", "case_id", "physician_id", "review_date",
		"review_status", "notes", "due_date", "completed_at",
	},
	Normalize: normalizeCaseReview,
}

func normalizeCaseReview(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	b := newBuilder(rec)
	id, ok := b.keyId("id")
	if !ok {
		return dropRow("id", rec)
	}
	b.out.SetData("review_id", id)
	b.putId("case_id", "case_id")
	b.putId("physician_id", "physician_id")
	b.putDate("review_date", "review_date")
	b.putString("review_status", "review_status")
	b.putString("notes", "notes")
	b.putDate("due_date", "due_date")
	b.putTime("completed_at", "completed_at")
	b.carryProvenance()
	return b.row()
}
