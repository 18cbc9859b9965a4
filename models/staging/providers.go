package staging

import (
	"strings"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/stream"
)

// Providers normalizes the supervised providers replica table. The
// provider type must be one of the recognised credentials; anything else
// is a cast failure and the field goes null.
var Providers = Model{
	Table: "stg_providers",
	Columns: []string{
		"provider_id", "npi", "first_name", "last_name", "full_name",
		"provider_type", "supervising_physician_id", "state_id",
		"email", "phone", "hire_date",
	},
	Normalize: normalizeProvider,
}

func normalizeProvider(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	b := newBuilder(rec)
	id, ok := b.keyId("id")
	if !ok {
		return dropRow("id", rec)
	}
	b.out.SetData("provider_id", id)
	b.putString("npi", "npi")
	b.putString("first_name", "first_name")
	b.putString("last_name", "last_name")
	b.out.SetData("full_name", fullName(b.out))
	pt, okPt, err := rec.GetString("provider_type")
	switch {
	case err != nil:
		b.put("provider_type", nil, false, err)
	case !okPt:
		b.out.SetData("provider_type", nil)
	default:
		upper := strings.ToUpper(strings.TrimSpace(pt))
		if upper == c.ProviderTypeNP || upper == c.ProviderTypePA {
			b.out.SetData("provider_type", upper)
		} else { // unrecognised credential...
			b.put("provider_type", nil, false, &stream.CastError{Field: "provider_type", Value: pt, Want: "NP|PA"})
		}
	}
	b.putId("supervising_physician_id", "supervising_physician_id")
	b.putId("state_id", "state_id")
	b.putString("email", "email")
	b.putString("phone", "phone")
	b.putDate("hire_date", "hire_date")
	b.carryProvenance()
	return b.row()
}
