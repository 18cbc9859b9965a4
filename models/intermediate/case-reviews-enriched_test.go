package intermediate

import (
	"testing"
	"time"

	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/models/staging"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

func mkRec(fields map[string]interface{}) stream.Record {
	rec := stream.NewRecord()
	for k, v := range fields {
		rec.SetData(k, v)
	}
	return rec
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func enrichmentFixture() *CaseReviewsEnrichedConfig {
	log := logger.NewLogger("enrichment test", "error", true)
	cases := table.New(staging.Cases.Table, staging.Cases.Columns)
	cases.Append(mkRec(map[string]interface{}{
		"case_id": "C1", "provider_id": "Pr10", "case_status": "open",
		"opened_at": day(2026, 3, 1),
	}))
	cases.Append(mkRec(map[string]interface{}{
		"case_id": "C2", "provider_id": "Pr10", "case_status": "open",
		"opened_at": day(2026, 3, 2),
	}))
	cases.Append(mkRec(map[string]interface{}{
		"case_id": "C3", "provider_id": "Pr11", "case_status": "open",
		"opened_at": day(2026, 3, 3),
	}))
	reviews := table.New(staging.CaseReviews.Table, staging.CaseReviews.Columns)
	reviews.Append(mkRec(map[string]interface{}{
		"review_id": "R100", "case_id": "C1", "physician_id": "P20",
		"review_date": day(2026, 3, 5), "review_status": "completed",
		"due_date":     day(2026, 3, 10),
		"completed_at": time.Date(2026, 3, 8, 15, 30, 0, 0, time.UTC),
	}))
	reviews.Append(mkRec(map[string]interface{}{
		"review_id": "R101", "case_id": "C1", "physician_id": "P20",
		"review_date": day(2026, 3, 12), "review_status": "pending",
		"due_date": day(2026, 3, 20),
	}))
	reviews.Append(mkRec(map[string]interface{}{
		"review_id": "R102", "case_id": "C2", "physician_id": "P20",
		"review_date": day(2026, 3, 6), "review_status": "overdue",
		"due_date": day(2026, 3, 10),
	}))
	providers := table.New(staging.Providers.Table, staging.Providers.Columns)
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr10", "full_name": "Dana Reyes", "provider_type": "NP",
		"supervising_physician_id": "P20",
	}))
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr11", "full_name": "Sam Ortiz", "provider_type": "PA",
		"supervising_physician_id": "P20",
	}))
	physicians := table.New(staging.Physicians.Table, staging.Physicians.Columns)
	physicians.Append(mkRec(map[string]interface{}{
		"physician_id": "P20", "full_name": "Asha Patel", "specialty": "Cardiology",
	}))
	return &CaseReviewsEnrichedConfig{
		Log:         log,
		Cases:       cases,
		CaseReviews: reviews,
		Providers:   providers,
		Physicians:  physicians,
		AsOf:        day(2026, 3, 15),
	}
}

func rowsByReviewID(t *testing.T, tbl *table.Table) map[string]stream.Record {
	t.Helper()
	out := make(map[string]stream.Record)
	for _, rec := range tbl.Rows {
		id, ok, err := rec.GetIdString("review_id")
		if err != nil {
			t.Fatal("unexpected review_id cast error: ", err)
		}
		if !ok {
			continue
		}
		out[id] = rec
	}
	return out
}

func TestCaseReviewsEnrichedFanOutAndJoins(t *testing.T) {
	cfg := enrichmentFixture()
	tbl := BuildCaseReviewsEnriched(cfg)
	// Test 1: case 1 has two reviews and fans out; cases 2 and 3 land one row each...
	if tbl.Len() != 4 {
		t.Fatal("expected 4 enriched rows, got ", tbl.Len())
	}
	rows := rowsByReviewID(t, tbl)
	rec, exists := rows["R100"]
	if !exists {
		t.Fatal("expected a row for review R100")
	}
	// Test 2: provider and physician names land under their renamed fields...
	if name, _, _ := rec.GetString("provider_name"); name != "Dana Reyes" {
		t.Fatal("expected provider_name Dana Reyes, got ", name)
	}
	if name, _, _ := rec.GetString("physician_name"); name != "Asha Patel" {
		t.Fatal("expected physician_name Asha Patel, got ", name)
	}
	if spec, _, _ := rec.GetString("physician_specialty"); spec != "Cardiology" {
		t.Fatal("expected physician_specialty Cardiology, got ", spec)
	}
}

func TestCaseReviewsEnrichedNoReviewRow(t *testing.T) {
	cfg := enrichmentFixture()
	tbl := BuildCaseReviewsEnriched(cfg)
	// Test 1: the review-less case survives exactly once with null review fields...
	var noReview stream.Record
	found := 0
	for _, rec := range tbl.Rows {
		caseID, _, _ := rec.GetIdString("case_id")
		if caseID == "C3" {
			noReview = rec
			found++
		}
	}
	if found != 1 {
		t.Fatal("expected exactly 1 row for the review-less case, got ", found)
	}
	if v := noReview.GetData("review_id"); v != nil {
		t.Fatal("expected nil review_id, got ", v)
	}
	if v := noReview.GetData("review_status"); v != nil {
		t.Fatal("expected nil review_status, got ", v)
	}
	// Test 2: no review means not overdue...
	if overdue, _, _ := noReview.GetBool("is_overdue"); overdue {
		t.Fatal("expected is_overdue false for a case with no review")
	}
	if v := noReview.GetData("days_from_due_date"); v != nil {
		t.Fatal("expected nil days_from_due_date, got ", v)
	}
}

func TestCaseReviewsEnrichedDerivations(t *testing.T) {
	cfg := enrichmentFixture()
	tbl := BuildCaseReviewsEnriched(cfg)
	rows := rowsByReviewID(t, tbl)
	// Test 1: completed review measures creation to completion and signed slack vs due date...
	completed := rows["R100"]
	if overdue, _, _ := completed.GetBool("is_overdue"); overdue {
		t.Fatal("expected completed review not overdue")
	}
	if days, _, _ := completed.GetInt64("days_to_complete_review"); days != 7 {
		t.Fatal("expected days_to_complete_review 7, got ", days)
	}
	if days, _, _ := completed.GetInt64("days_from_due_date"); days != -2 {
		t.Fatal("expected days_from_due_date -2, got ", days)
	}
	// Test 2: pending review with a future due date is not overdue and has no due delta yet...
	pending := rows["R101"]
	if overdue, _, _ := pending.GetBool("is_overdue"); overdue {
		t.Fatal("expected pending review with future due date not overdue")
	}
	if v := pending.GetData("days_to_complete_review"); v != nil {
		t.Fatal("expected nil days_to_complete_review for pending, got ", v)
	}
	if v := pending.GetData("days_from_due_date"); v != nil {
		t.Fatal("expected nil days_from_due_date for pending, got ", v)
	}
	// Test 3: overdue review measures slack against the run date...
	over := rows["R102"]
	if overdue, _, _ := over.GetBool("is_overdue"); !overdue {
		t.Fatal("expected overdue review flagged")
	}
	if days, _, _ := over.GetInt64("days_from_due_date"); days != 5 {
		t.Fatal("expected days_from_due_date 5, got ", days)
	}
}

func TestCaseReviewsEnrichedPendingPastDue(t *testing.T) {
	cfg := enrichmentFixture()
	// Move the run date past the pending review's due date...
	cfg.AsOf = day(2026, 3, 25)
	tbl := BuildCaseReviewsEnriched(cfg)
	rows := rowsByReviewID(t, tbl)
	pending := rows["R101"]
	if overdue, _, _ := pending.GetBool("is_overdue"); !overdue {
		t.Fatal("expected pending review past its due date to be overdue")
	}
	// Status is still pending so the due delta stays null...
	if v := pending.GetData("days_from_due_date"); v != nil {
		t.Fatal("expected nil days_from_due_date for pending, got ", v)
	}
}
