package staging

import (
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/stream"
)

// States normalizes the licensing states replica table. A null review
// frequency falls back to the policy default.
var States = Model{
	Table: "stg_states",
	Columns: []string{
		"state_id", "state_code", "state_name",
		"supervision_requirements", "review_frequency_days",
	},
	Normalize: normalizeState,
}

func normalizeState(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	b := newBuilder(rec)
	id, ok := b.keyId("id")
	if !ok {
		return dropRow("id", rec)
	}
	b.out.SetData("state_id", id)
	b.putString("code", "state_code")
	b.putString("name", "state_name")
	b.putString("supervision_requirements", "supervision_requirements")
	b.putInt64("review_frequency_days", "review_frequency_days")
	if v, _ := b.out.GetDataOk("review_frequency_days"); v == nil { // null frequency takes the default...
		b.out.SetData("review_frequency_days", int64(c.ReviewFrequencyDaysDefault))
	}
	b.carryProvenance()
	return b.row()
}
