package intermediate

import (
	"testing"
	"time"

	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/models/staging"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

func dailyMetricsFixture() *DailyReviewMetricsConfig {
	log := logger.NewLogger("daily metrics test", "error", true)
	providers := table.New(staging.Providers.Table, staging.Providers.Columns)
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr10", "supervising_physician_id": "P20",
	}))
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr11", "supervising_physician_id": "P20",
	}))
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr12", "supervising_physician_id": "P21",
	}))
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr13", "supervising_physician_id": nil, // unsupervised, stays off the roster.
	}))
	enriched := table.New("int_case_reviews_enriched", CaseReviewsEnrichedColumns)
	enriched.Append(mkRec(map[string]interface{}{
		"case_id": "C1", "review_id": "R100", "review_physician_id": "P20",
		"review_date": day(2026, 3, 2), "review_status": "completed", "is_overdue": false,
		"due_date": day(2026, 3, 5), "days_to_complete_review": int64(4),
	}))
	enriched.Append(mkRec(map[string]interface{}{
		"case_id": "C2", "review_id": "R101", "review_physician_id": "P20",
		"review_date": day(2026, 3, 2), "review_status": "completed", "is_overdue": false,
		"due_date": day(2026, 3, 6), "days_to_complete_review": int64(6),
	}))
	enriched.Append(mkRec(map[string]interface{}{
		"case_id": "C3", "review_id": "R102", "review_physician_id": "P20",
		"review_date": day(2026, 3, 2), "review_status": "pending", "is_overdue": false,
		"due_date": day(2026, 3, 10),
	}))
	enriched.Append(mkRec(map[string]interface{}{
		"case_id": "C4", "review_id": "R103", "review_physician_id": "P20",
		"review_date": day(2026, 3, 2), "review_status": "pending", "is_overdue": true,
		"due_date": day(2026, 3, 1), // pending past its due date, flagged overdue upstream.
	}))
	enriched.Append(mkRec(map[string]interface{}{
		"case_id": "C5", "review_id": "R104", "review_physician_id": "P21",
		"review_date": day(2026, 3, 3), "review_status": "overdue", "is_overdue": true,
		"due_date": day(2026, 3, 1),
	}))
	// A review-less case row from the left join upstream...
	enriched.Append(mkRec(map[string]interface{}{
		"case_id": "C6", "review_id": nil,
	}))
	return &DailyReviewMetricsConfig{
		Log:                 log,
		CaseReviewsEnriched: enriched,
		Providers:           providers,
		StartDate:           day(2026, 3, 1),
		AsOf:                day(2026, 3, 3),
	}
}

func metricRow(t *testing.T, tbl *table.Table, physicianID string, metricDate time.Time) stream.Record {
	t.Helper()
	for _, rec := range tbl.Rows {
		id, _, _ := rec.GetIdString("physician_id")
		d, _, _ := rec.GetDate("metric_date")
		if id == physicianID && d.Equal(metricDate) {
			return rec
		}
	}
	t.Fatal("no metric row for physician ", physicianID, " on ", metricDate)
	return stream.NewNilRecord()
}

func TestDailyReviewMetricsGapFreeGrid(t *testing.T) {
	cfg := dailyMetricsFixture()
	tbl := BuildDailyReviewMetrics(cfg)
	// Test 1: 2 supervising physicians x 3 days, no gaps even on quiet days...
	if tbl.Len() != 6 {
		t.Fatal("expected 6 metric rows, got ", tbl.Len())
	}
	seen := make(map[string]int)
	for _, rec := range tbl.Rows {
		id, _, _ := rec.GetIdString("physician_id")
		d, _, _ := rec.GetDate("metric_date")
		seen[rec.JoinKeyValue(cfg.Log, []string{"physician_id", "metric_date"})]++
		if id != "P20" && id != "P21" {
			t.Fatal("unexpected physician on the grid: ", id)
		}
		if d.Before(day(2026, 3, 1)) || d.After(day(2026, 3, 3)) {
			t.Fatal("metric date outside the spine: ", d)
		}
	}
	for key, n := range seen {
		if n != 1 {
			t.Fatal("expected one row per physician per day, got ", n, " for ", key)
		}
	}
}

func TestDailyReviewMetricsCounts(t *testing.T) {
	cfg := dailyMetricsFixture()
	tbl := BuildDailyReviewMetrics(cfg)
	// Test 1: an active day carries its counts and completion average...
	busy := metricRow(t, tbl, "P20", day(2026, 3, 2))
	if n, _, _ := busy.GetInt64("reviews_completed"); n != 2 {
		t.Fatal("expected 2 completed, got ", n)
	}
	if n, _, _ := busy.GetInt64("reviews_pending"); n != 1 {
		t.Fatal("expected 1 pending not flagged overdue, got ", n)
	}
	// The pending review past its due date lands in the overdue bucket, so
	// the four reviews on this day split 2 + 1 + 1 with none uncounted.
	if n, _, _ := busy.GetInt64("reviews_overdue"); n != 1 {
		t.Fatal("expected 1 overdue, got ", n)
	}
	if avg, _, _ := busy.GetFloat64("avg_days_to_complete"); avg != 5.0 {
		t.Fatal("expected avg_days_to_complete 5.0, got ", avg)
	}
	// Test 2: quiet days zero-fill the counts and leave the average null...
	quiet := metricRow(t, tbl, "P20", day(2026, 3, 1))
	for _, f := range []string{"reviews_completed", "reviews_pending", "reviews_overdue"} {
		if n, _, _ := quiet.GetInt64(f); n != 0 {
			t.Fatal("expected ", f, " zero-filled on a quiet day, got ", n)
		}
	}
	if v := quiet.GetData("avg_days_to_complete"); v != nil {
		t.Fatal("expected nil avg_days_to_complete on a quiet day, got ", v)
	}
	// Test 3: the overdue review lands on its own physician and day...
	over := metricRow(t, tbl, "P21", day(2026, 3, 3))
	if n, _, _ := over.GetInt64("reviews_overdue"); n != 1 {
		t.Fatal("expected 1 overdue, got ", n)
	}
}

func TestDailyReviewMetricsProviderSnapshot(t *testing.T) {
	cfg := dailyMetricsFixture()
	tbl := BuildDailyReviewMetrics(cfg)
	// The roster count is today's snapshot, repeated on every day of the spine...
	for _, rec := range tbl.Rows {
		id, _, _ := rec.GetIdString("physician_id")
		count, _, _ := rec.GetInt64("provider_count")
		want := int64(1)
		if id == "P20" {
			want = 2
		}
		if count != want {
			t.Fatal("expected provider_count ", want, " for physician ", id, ", got ", count)
		}
	}
	// Date keys and day names ride along from the spine...
	rec := metricRow(t, tbl, "P20", day(2026, 3, 2))
	if key, _, _ := rec.GetInt64("date_key"); key != 20260302 {
		t.Fatal("expected date_key 20260302, got ", key)
	}
	if dow, _, _ := rec.GetString("day_of_week"); dow != "Monday" {
		t.Fatal("expected day_of_week Monday, got ", dow)
	}
}
