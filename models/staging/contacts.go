package staging

import (
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/rawinput"
	"github.com/paracelsus/martpipe/stream"
)

// ContactColumns is shared by both contact normalizers and the union
// table, so rows from either ingestion path line up column for column.
var ContactColumns = []string{
	"contact_id", "email", "first_name", "last_name", "phone", "company",
	"job_title", "lifecycle_stage", "lead_status",
	"created_at", "updated_at", "contact_source",
}

// ContactsFile normalizes contacts landed from the CSV drop. The
// discriminator column is always "csv_file" and never null.
var ContactsFile = Model{
	Table:     "stg_contacts_file",
	Columns:   ContactColumns,
	Normalize: normalizeContactFile,
}

// ContactsApi normalizes contacts landed from the API extract. Its raw
// shape differs (property bag vs CSV columns) but the output contract is
// identical bar the discriminator.
var ContactsApi = Model{
	Table:     "stg_contacts_api",
	Columns:   ContactColumns,
	Normalize: normalizeContactApi,
}

// Contacts is the union of the file and API row sets. Rows sharing a
// natural id stay distinct; the discriminator is the only difference the
// union introduces.
var Contacts = Model{
	Table:   "stg_contacts",
	Columns: ContactColumns,
}

func normalizeContactFile(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	out, errs, err := normalizeContactCommon(rec)
	if err != nil || out.RecordIsNil() {
		return out, errs, err
	}
	out.SetData("contact_source", c.ContactSourceFile)
	return out, errs, err
}

func normalizeContactApi(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	out, errs, err := normalizeContactCommon(rec)
	if err != nil || out.RecordIsNil() {
		return out, errs, err
	}
	out.SetData("contact_source", c.ContactSourceApi)
	return out, errs, err
}

// normalizeContactCommon maps the HubSpot-style property names onto
// canonical columns. Raw landing has already flattened the property bag,
// so both ingestion paths present the same field names here.
func normalizeContactCommon(rec stream.Record) (stream.Record, []*stream.CastError, error) {
	b := newBuilder(rec)
	id, ok := b.keyId("id")
	if !ok {
		return dropRow("id", rec)
	}
	b.out.SetData("contact_id", id)
	b.putString("email", "email")
	b.putString("firstname", "first_name")
	b.putString("lastname", "last_name")
	b.putString("phone", "phone")
	b.putString("company", "company")
	b.putString("jobtitle", "job_title")
	b.putString("lifecyclestage", "lifecycle_stage")
	b.putString("hs_lead_status", "lead_status")
	b.putTime("createdate", "created_at")
	// A missing lastmodifieddate falls back to the envelope timestamp;
	// absent in both yields null, never an error.
	b.putTimeWithFallback("lastmodifieddate", "updatedat", "updated_at")
	b.carryProvenance()
	if v, ok := rec.GetDataOk(rawinput.FieldSourceFile); ok {
		b.out.SetData(rawinput.FieldSourceFile, v)
	}
	return b.row()
}
