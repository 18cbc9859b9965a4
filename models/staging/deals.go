package staging

import (
	"github.com/paracelsus/martpipe/rawinput"
	"github.com/paracelsus/martpipe/stream"
)

// Deals normalizes the deals CSV drop that arrives alongside contacts.
var Deals = Model{
	Table: "stg_deals",
	Columns: []string{
		"deal_id", "deal_name", "amount", "deal_stage", "pipeline",
		"close_date", "created_at", "updated_at",
	},
	Normalize: normalizeDeal,
}

func normalizeDeal(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	b := newBuilder(rec)
	id, ok := b.keyId("id")
	if !ok {
		return dropRow("id", rec)
	}
	b.out.SetData("deal_id", id)
	b.putString("dealname", "deal_name")
	b.putFloat64("amount", "amount")
	b.putString("dealstage", "deal_stage")
	b.putString("pipeline", "pipeline")
	b.putTime("closedate", "close_date")
	b.putTime("createdate", "created_at")
	b.putTimeWithFallback("hs_lastmodifieddate", "updatedat", "updated_at")
	b.carryProvenance()
	if v, ok := rec.GetDataOk(rawinput.FieldSourceFile); ok {
		b.out.SetData(rawinput.FieldSourceFile, v)
	}
	return b.row()
}
