package staging

import (
	"github.com/paracelsus/martpipe/stream"
)

// Cases normalizes the patient cases replica table.
var Cases = Model{
	Table: "stg_cases",
	Columns: []string{
		"case_id", "provider_id", "patient_mrn", "case_type",
		"case_status", "priority", "opened_at", "closed_at",
	},
	Normalize: normalizeCase,
}

func normalizeCase(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	b := newBuilder(rec)
	id, ok := b.keyId("id")
	if !ok {
		return dropRow("id", rec)
	}
	b.out.SetData("case_id", id)
	b.putId("provider_id", "provider_id")
	b.putString("patient_mrn", "patient_mrn")
	b.putString("case_type", "case_type")
	b.putString("status", "case_status")
	b.putString("priority", "priority")
	b.putTime("created_at", "opened_at")
	b.putTime("closed_at", "closed_at")
	b.carryProvenance()
	return b.row()
}
