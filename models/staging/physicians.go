package staging

import (
	"github.com/paracelsus/martpipe/stream"
)

// Physicians normalizes the supervising physicians replica table.
var Physicians = Model{
	Table: "stg_physicians",
	Columns: []string{
		"physician_id", "npi", "first_name", "last_name", "full_name",
		"specialty", "state_license_id", "email", "phone",
	},
	Normalize: normalizePhysician,
}

func normalizePhysician(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	b := newBuilder(rec)
	id, ok := b.keyId("id")
	if !ok {
		return dropRow("id", rec)
	}
	b.out.SetData("physician_id", id)
	b.putString("npi", "npi")
	b.putString("first_name", "first_name")
	b.putString("last_name", "last_name")
	b.out.SetData("full_name", fullName(b.out))
	b.putString("specialty", "specialty")
	b.putId("state_license_id", "state_license_id")
	b.putString("email", "email")
	b.putString("phone", "phone")
	b.carryProvenance()
	return b.row()
}

// fullName joins first and last name, tolerating either being null.
func fullName(rec stream.Record) interface{} {
	first, okF, _ := rec.GetString("first_name")
	last, okL, _ := rec.GetString("last_name")
	switch {
	case okF && okL:
		return first + " " + last
	case okF:
		return first
	case okL:
		return last
	default:
		return nil
	}
}
