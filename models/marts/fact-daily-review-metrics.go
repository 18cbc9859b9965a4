package marts

import (
	"math"

	"github.com/paracelsus/martpipe/components"
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

var FactDailyReviewMetricsColumns = []string{
	"physician_key", "physician_id", "metric_date", "date_key", "day_of_week",
	"provider_count",
	"cases_reviewed", "cases_pending_review", "cases_overdue", "total_cases",
	"avg_days_to_complete", "overdue_rate_pct", "workload_status",
}

type FactDailyReviewMetricsConfig struct {
	Log           logger.Logger
	DailyMetrics  *table.Table
	DimPhysicians *table.Table
}

// BuildFactDailyReviewMetrics resolves each daily metrics row against
// dim_physicians and derives the rate and workload columns. The join is
// inner: a metrics row whose physician has no dimension row is dropped,
// which the normalize step reports at warn level since every referenced
// physician is expected to have one.
func BuildFactDailyReviewMetrics(cfg *FactDailyReviewMetricsConfig) *table.Table {
	keyByID := surrogateKeyIndex(cfg.DimPhysicians, "physician_id", "physician_key")
	shaped, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:       cfg.Log,
		Name:      "build fact_daily_review_metrics",
		InputChan: cfg.DailyMetrics.Chan(),
		NormalizeFn: func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
			physicianID, ok, err := rec.GetIdString("physician_id")
			if err != nil || !ok {
				return stream.NewNilRecord(), nil, nil
			}
			key, exists := keyByID[physicianID]
			if !exists { // no dimension row for this physician...
				return stream.NewNilRecord(), nil, nil
			}
			reviewed, _, _ := rec.GetInt64("reviews_completed")
			pending, _, _ := rec.GetInt64("reviews_pending")
			overdue, _, _ := rec.GetInt64("reviews_overdue")
			total := reviewed + pending + overdue
			out := stream.NewRecord()
			out.SetData("physician_key", key)
			out.SetData("physician_id", physicianID)
			out.SetData("metric_date", rec.GetData("metric_date"))
			out.SetData("date_key", rec.GetData("date_key"))
			out.SetData("day_of_week", rec.GetData("day_of_week"))
			out.SetData("provider_count", rec.GetData("provider_count"))
			out.SetData("cases_reviewed", reviewed)
			out.SetData("cases_pending_review", pending)
			out.SetData("cases_overdue", overdue)
			out.SetData("total_cases", total)
			out.SetData("avg_days_to_complete", rec.GetData("avg_days_to_complete"))
			out.SetData("overdue_rate_pct", OverdueRatePct(overdue, total))
			out.SetData("workload_status", ClassifyWorkload(overdue, pending))
			return out, nil, nil
		},
	})
	return table.FromChan("fact_daily_review_metrics", FactDailyReviewMetricsColumns, shaped)
}

// OverdueRatePct returns overdue over total as a percentage rounded to two
// decimals. A zero total yields exactly 0, never a division error or null.
func OverdueRatePct(overdue, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(overdue)/float64(total)*100*100) / 100
}

// ClassifyWorkload buckets a physician's day by fixed thresholds.
// Rules apply in order and the first match wins.
func ClassifyWorkload(overdue, pending int64) string {
	switch {
	case overdue > c.WorkloadOverdueCritical:
		return c.WorkloadStatusCritical
	case overdue > c.WorkloadOverdueWarning:
		return c.WorkloadStatusWarning
	case pending > c.WorkloadPendingHigh:
		return c.WorkloadStatusHigh
	default:
		return c.WorkloadStatusNormal
	}
}
