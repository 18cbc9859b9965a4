// Package marts builds the dimensional model served to downstream
// consumers: one dimension per party plus the daily fact.
//
// Surrogate keys are assigned by ordering on the natural key and are
// recomputed on every run, so they are stable only while the underlying
// id set is unchanged. Dimensions follow a type-1 lifecycle: each reload
// overwrites attributes in place. The effective_from, effective_to and
// is_current columns are structural placeholders for history tracking;
// today is_current is always true and effective_to always null.
package marts

import (
	"sort"
	"time"

	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

// scdColumns are the lifecycle placeholder columns shared by every dimension.
var scdColumns = []string{"effective_from", "effective_to", "is_current"}

// assignSurrogateKeys sorts the rows by the natural key field and stamps a
// 1-based surrogate key onto each. Natural ids are opaque strings and unique
// upstream, so lexicographic ordering is total.
func assignSurrogateKeys(rows []stream.Record, naturalField, keyField string) {
	sort.Slice(rows, func(i, j int) bool {
		a, _, _ := rows[i].GetIdString(naturalField)
		b, _, _ := rows[j].GetIdString(naturalField)
		return a < b
	})
	for idx, rec := range rows {
		rec.SetData(keyField, int64(idx+1))
	}
}

// stampLifecycle sets the type-1 placeholder columns on a dimension row.
func stampLifecycle(rec stream.Record, loadedAt time.Time) {
	rec.SetData("effective_from", loadedAt)
	rec.SetData("effective_to", nil)
	rec.SetData("is_current", true)
}

// surrogateKeyIndex maps natural ids to surrogate keys for fact joins.
func surrogateKeyIndex(t *table.Table, naturalField, keyField string) map[string]int64 {
	idx := make(map[string]int64, t.Len())
	for _, rec := range t.Rows {
		id, ok, err := rec.GetIdString(naturalField)
		if err != nil || !ok {
			continue
		}
		key, _, _ := rec.GetInt64(keyField)
		idx[id] = key
	}
	return idx
}
