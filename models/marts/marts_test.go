package marts

import (
	"testing"
	"time"

	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/models/intermediate"
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

func statesFixture() *table.Table {
	t := table.New(staging.States.Table, staging.States.Columns)
	t.Append(mkRec(map[string]interface{}{
		"state_id": "S1", "state_code": "CA", "state_name": "California",
	}))
	t.Append(mkRec(map[string]interface{}{
		"state_id": "S2", "state_code": "TX", "state_name": "Texas",
	}))
	return t
}

func TestDimPhysiciansKeysAndStateDenorm(t *testing.T) {
	log := logger.NewLogger("marts test", "error", true)
	physicians := table.New(staging.Physicians.Table, staging.Physicians.Columns)
	physicians.Append(mkRec(map[string]interface{}{
		"physician_id": "P30", "full_name": "Lee Wong", "state_license_id": "S2",
	}))
	physicians.Append(mkRec(map[string]interface{}{
		"physician_id": "P10", "full_name": "Asha Patel", "state_license_id": "S1",
	}))
	physicians.Append(mkRec(map[string]interface{}{
		"physician_id": "P20", "full_name": "Noor Khan", "state_license_id": "S99", // unknown state.
	}))
	loadedAt := time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC)
	dim := BuildDimPhysicians(&DimPhysiciansConfig{
		Log: log, Physicians: physicians, States: statesFixture(), LoadedAt: loadedAt,
	})
	if dim.Len() != 3 {
		t.Fatal("expected 3 dimension rows, got ", dim.Len())
	}
	// Test 1: surrogate keys follow ascending natural id regardless of input order...
	for idx, wantID := range []string{"P10", "P20", "P30"} {
		rec := dim.Rows[idx]
		id, _, _ := rec.GetIdString("physician_id")
		key, _, _ := rec.GetInt64("physician_key")
		if id != wantID || key != int64(idx+1) {
			t.Fatal("expected physician ", wantID, " at key ", idx+1, ", got id ", id, " key ", key)
		}
	}
	// Test 2: the state lookup denormalizes code and name...
	ca := dim.Rows[0]
	if code, _, _ := ca.GetString("state_code"); code != "CA" {
		t.Fatal("expected state_code CA, got ", code)
	}
	if name, _, _ := ca.GetString("state_name"); name != "California" {
		t.Fatal("expected state_name California, got ", name)
	}
	// Test 3: an unknown state keeps the row with null state fields...
	unknown := dim.Rows[1]
	if v := unknown.GetData("state_code"); v != nil {
		t.Fatal("expected nil state_code for unknown state, got ", v)
	}
	// Test 4: lifecycle placeholders are stamped...
	if from, _, _ := ca.GetTime("effective_from"); !from.Equal(loadedAt) {
		t.Fatal("expected effective_from ", loadedAt, ", got ", from)
	}
	if v := ca.GetData("effective_to"); v != nil {
		t.Fatal("expected nil effective_to, got ", v)
	}
	if current, _, _ := ca.GetBool("is_current"); !current {
		t.Fatal("expected is_current true")
	}
}

func TestDimProvidersKeys(t *testing.T) {
	log := logger.NewLogger("marts test", "error", true)
	providers := table.New(staging.Providers.Table, staging.Providers.Columns)
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr7", "full_name": "Dana Reyes", "provider_type": "NP",
		"state_id": "S1",
	}))
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr3", "full_name": "Sam Ortiz", "provider_type": "PA",
		"state_id": "S2",
	}))
	dim := BuildDimProviders(&DimProvidersConfig{
		Log: log, Providers: providers, States: statesFixture(),
		LoadedAt: time.Now().UTC(),
	})
	if dim.Len() != 2 {
		t.Fatal("expected 2 dimension rows, got ", dim.Len())
	}
	first := dim.Rows[0]
	if id, _, _ := first.GetIdString("provider_id"); id != "Pr3" {
		t.Fatal("expected provider Pr3 first, got ", id)
	}
	if key, _, _ := first.GetInt64("provider_key"); key != 1 {
		t.Fatal("expected provider_key 1, got ", key)
	}
	if code, _, _ := first.GetString("state_code"); code != "TX" {
		t.Fatal("expected state_code TX, got ", code)
	}
}

func TestClassifyWorkloadThresholds(t *testing.T) {
	tests := []struct {
		overdue, pending int64
		want             string
	}{
		{6, 0, "critical"},
		{6, 100, "critical"}, // overdue dominates regardless of pending.
		{5, 0, "warning"},
		{3, 0, "warning"},
		{2, 11, "high"},
		{0, 11, "high"},
		{0, 10, "normal"},
		{2, 0, "normal"},
		{1, 0, "normal"},
		{0, 0, "normal"},
	}
	for _, tt := range tests {
		if got := ClassifyWorkload(tt.overdue, tt.pending); got != tt.want {
			t.Fatal("overdue ", tt.overdue, " pending ", tt.pending, ": expected ", tt.want, ", got ", got)
		}
	}
}

func TestOverdueRatePct(t *testing.T) {
	tests := []struct {
		overdue, total int64
		want           float64
	}{
		{0, 0, 0}, // zero-guard, not null.
		{1, 1, 100},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := OverdueRatePct(tt.overdue, tt.total); got != tt.want {
			t.Fatal("overdue ", tt.overdue, " total ", tt.total, ": expected ", tt.want, ", got ", got)
		}
	}
}

// End to end through the aggregate layers: one overdue review produces a
// fact row with a 100 percent overdue rate but a normal workload, since a
// single overdue review is under every threshold.
func TestFactSingleOverdueReview(t *testing.T) {
	log := logger.NewLogger("marts test", "error", true)
	d := day(2026, 3, 10)
	providers := table.New(staging.Providers.Table, staging.Providers.Columns)
	providers.Append(mkRec(map[string]interface{}{
		"provider_id": "Pr1", "supervising_physician_id": "P5",
	}))
	enriched := table.New("int_case_reviews_enriched", intermediate.CaseReviewsEnrichedColumns)
	enriched.Append(mkRec(map[string]interface{}{
		"case_id": "C1", "review_id": "R9", "review_physician_id": "P5",
		"review_date": d, "review_status": "overdue", "is_overdue": true,
		"due_date": day(2026, 3, 5),
	}))
	metrics := intermediate.BuildDailyReviewMetrics(&intermediate.DailyReviewMetricsConfig{
		Log:                 log,
		CaseReviewsEnriched: enriched,
		Providers:           providers,
		StartDate:           d,
		AsOf:                d,
	})
	physicians := table.New(staging.Physicians.Table, staging.Physicians.Columns)
	physicians.Append(mkRec(map[string]interface{}{
		"physician_id": "P5", "full_name": "Asha Patel", "state_license_id": "S1",
	}))
	dim := BuildDimPhysicians(&DimPhysiciansConfig{
		Log: log, Physicians: physicians, States: statesFixture(), LoadedAt: time.Now().UTC(),
	})
	fact := BuildFactDailyReviewMetrics(&FactDailyReviewMetricsConfig{
		Log: log, DailyMetrics: metrics, DimPhysicians: dim,
	})
	if fact.Len() != 1 {
		t.Fatal("expected 1 fact row, got ", fact.Len())
	}
	rec := fact.Rows[0]
	if n, _, _ := rec.GetInt64("cases_overdue"); n != 1 {
		t.Fatal("expected cases_overdue 1, got ", n)
	}
	if n, _, _ := rec.GetInt64("total_cases"); n != 1 {
		t.Fatal("expected total_cases 1, got ", n)
	}
	if rate, _, _ := rec.GetFloat64("overdue_rate_pct"); rate != 100.0 {
		t.Fatal("expected overdue_rate_pct 100, got ", rate)
	}
	if status, _, _ := rec.GetString("workload_status"); status != "normal" {
		t.Fatal("expected workload_status normal, got ", status)
	}
	if key, _, _ := rec.GetInt64("physician_key"); key != 1 {
		t.Fatal("expected physician_key 1, got ", key)
	}
	if key, _, _ := rec.GetInt64("date_key"); key != 20260310 {
		t.Fatal("expected date_key 20260310, got ", key)
	}
}

func TestFactDropsMetricsWithoutDimensionRow(t *testing.T) {
	log := logger.NewLogger("marts test", "error", true)
	metrics := table.New("int_daily_review_metrics", intermediate.DailyReviewMetricsColumns)
	metrics.Append(mkRec(map[string]interface{}{
		"physician_id": "P5", "metric_date": day(2026, 3, 10), "date_key": int64(20260310),
		"reviews_completed": int64(1), "reviews_pending": int64(0), "reviews_overdue": int64(0),
	}))
	metrics.Append(mkRec(map[string]interface{}{
		"physician_id": "P999", "metric_date": day(2026, 3, 10), "date_key": int64(20260310),
		"reviews_completed": int64(2), "reviews_pending": int64(0), "reviews_overdue": int64(0),
	}))
	physicians := table.New(staging.Physicians.Table, staging.Physicians.Columns)
	physicians.Append(mkRec(map[string]interface{}{
		"physician_id": "P5", "full_name": "Asha Patel",
	}))
	dim := BuildDimPhysicians(&DimPhysiciansConfig{
		Log: log, Physicians: physicians, States: statesFixture(), LoadedAt: time.Now().UTC(),
	})
	fact := BuildFactDailyReviewMetrics(&FactDailyReviewMetricsConfig{
		Log: log, DailyMetrics: metrics, DimPhysicians: dim,
	})
	// The orphan physician's row is dropped; the matched one survives.
	if fact.Len() != 1 {
		t.Fatal("expected 1 fact row, got ", fact.Len())
	}
	if id, _, _ := fact.Rows[0].GetIdString("physician_id"); id != "P5" {
		t.Fatal("expected physician P5, got ", id)
	}
}
