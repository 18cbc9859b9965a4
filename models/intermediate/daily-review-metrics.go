package intermediate

import (
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/paracelsus/martpipe/components"
	"github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

// DailyReviewMetricsColumns is the output contract of the daily feed.
var DailyReviewMetricsColumns = []string{
	"physician_id", "metric_date", "date_key", "day_of_week",
	"provider_count",
	"reviews_completed", "reviews_pending", "reviews_overdue",
	"avg_days_to_complete",
}

type DailyReviewMetricsConfig struct {
	Log                 logger.Logger
	CaseReviewsEnriched *table.Table
	Providers           *table.Table
	StartDate           time.Time
	AsOf                time.Time
}

// BuildDailyReviewMetrics produces one row per physician per calendar day
// from StartDate through AsOf inclusive, for every physician currently
// supervising at least one provider. Days with no review activity are kept
// with zero counts so the series has no gaps. provider_count is a snapshot
// of today's roster, repeated on every day of the spine.
func BuildDailyReviewMetrics(cfg *DailyReviewMetricsConfig) *table.Table {
	physicians := supervisingPhysicians(cfg)
	spine, _ := components.NewDateSpine(&components.DateSpineConfig{
		Log:                 cfg.Log,
		Name:                "daily metrics date spine",
		StartDate:           cfg.StartDate,
		EndDate:             cfg.AsOf,
		FieldName4Date:      "metric_date",
		FieldName4DateKey:   "date_key",
		FieldName4DayOfWeek: "day_of_week",
	})
	grid, _ := components.NewCartesianProduct(&components.CartesianProductConfig{
		Log:           cfg.Log,
		Name:          "physician day grid",
		InputChannels: []chan stream.Record{physicians, spine},
	})
	activity := reviewActivityByDay(cfg)
	joinKeys := om.NewOrderedMap()
	joinKeys.Set("physician_id", "review_physician_id")
	joinKeys.Set("metric_date", "review_date")
	joined, _ := components.NewLookupJoin(&components.LookupJoinConfig{
		Log:        cfg.Log,
		Name:       "join grid to review activity",
		InputChan:  grid,
		LookupChan: activity,
		JoinKeys:   joinKeys,
		LookupFields: []string{
			"reviews_completed", "reviews_pending", "reviews_overdue",
			"avg_days_to_complete",
		},
		JoinType: components.LeftJoin,
	})
	filled, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:         cfg.Log,
		Name:        "zero-fill quiet days",
		InputChan:   joined,
		NormalizeFn: zeroFillCounts,
	})
	return table.FromChan("int_daily_review_metrics", DailyReviewMetricsColumns, filled)
}

// supervisingPhysicians counts today's providers per supervising physician
// and emits one row per physician with at least one. Providers without a
// supervisor are left out of the roster.
func supervisingPhysicians(cfg *DailyReviewMetricsConfig) chan stream.Record {
	supervised, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:       cfg.Log,
		Name:      "drop unsupervised providers",
		InputChan: cfg.Providers.Chan(),
		NormalizeFn: func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
			if rec.GetData("supervising_physician_id") == nil {
				return stream.NewNilRecord(), nil, nil
			}
			return rec, nil, nil
		},
	})
	counted, _ := components.NewGroupAggregator(&components.GroupAggregatorConfig{
		Log:           cfg.Log,
		Name:          "count providers per physician",
		InputChan:     supervised,
		GroupByFields: []string{"supervising_physician_id"},
		Aggregates: []components.AggregateSpec{
			{OutputField: "provider_count", NewState: components.CountDistinct("provider_id")},
		},
	})
	renamed, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:       cfg.Log,
		Name:      "shape physician roster",
		InputChan: counted,
		NormalizeFn: func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
			out := stream.NewRecord()
			out.SetData("physician_id", rec.GetData("supervising_physician_id"))
			out.SetData("provider_count", rec.GetData("provider_count"))
			return out, nil, nil
		},
	})
	return renamed
}

// reviewActivityByDay aggregates the enriched reviews into per-physician
// per-review-date counts. The buckets partition every review: completed,
// pending and not flagged overdue, or flagged overdue by the is_overdue
// flag the enrichment derives. The average completion time covers
// completed reviews only and stays null on days without one.
func reviewActivityByDay(cfg *DailyReviewMetricsConfig) chan stream.Record {
	reviewsOnly, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:       cfg.Log,
		Name:      "drop review-less cases",
		InputChan: cfg.CaseReviewsEnriched.Chan(),
		NormalizeFn: func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
			if rec.GetData("review_id") == nil {
				return stream.NewNilRecord(), nil, nil
			}
			return rec, nil, nil
		},
	})
	aggregated, _ := components.NewGroupAggregator(&components.GroupAggregatorConfig{
		Log:           cfg.Log,
		Name:          "aggregate reviews by physician and day",
		InputChan:     reviewsOnly,
		GroupByFields: []string{"review_physician_id", "review_date"},
		Aggregates: []components.AggregateSpec{
			{OutputField: "reviews_completed", NewState: components.CountIf(statusIs(constants.ReviewStatusCompleted))},
			{OutputField: "reviews_pending", NewState: components.CountIf(pendingNotOverdue)},
			{OutputField: "reviews_overdue", NewState: components.CountIf(flaggedOverdue)},
			{OutputField: "avg_days_to_complete", NewState: components.AvgFloat("days_to_complete_review")},
		},
	})
	return aggregated
}

func statusIs(want string) func(rec stream.Record) bool {
	return func(rec stream.Record) bool {
		status, ok, err := rec.GetString("review_status")
		return err == nil && ok && status == want
	}
}

// flaggedOverdue admits any review the enrichment flagged as overdue,
// whether its status says overdue outright or it is pending past its due
// date.
func flaggedOverdue(rec stream.Record) bool {
	flagged, ok, err := rec.GetBool("is_overdue")
	return err == nil && ok && flagged
}

// pendingNotOverdue admits the pending reviews the overdue bucket does not
// claim, so the two never double count.
func pendingNotOverdue(rec stream.Record) bool {
	status, ok, err := rec.GetString("review_status")
	if err != nil || !ok || status != constants.ReviewStatusPending {
		return false
	}
	return !flaggedOverdue(rec)
}

// zeroFillCounts replaces the null counts a quiet day gets from the left
// join with zeros. The average stays null since there is nothing to average.
func zeroFillCounts(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	for _, f := range []string{"reviews_completed", "reviews_pending", "reviews_overdue"} {
		if rec.GetData(f) == nil {
			rec.SetData(f, int64(0))
		}
	}
	return rec, nil, nil
}
