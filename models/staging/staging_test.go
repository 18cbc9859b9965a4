package staging

import (
	"testing"
	"time"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/stream"
)

func TestNormalizeStateDefaultsReviewFrequency(t *testing.T) {
	rec := stream.NewRecord()
	rec.SetData("id", int64(5))
	rec.SetData("code", "CA")
	rec.SetData("name", "California")
	rec.SetData("supervision_requirements", "Written agreement required")
	rec.SetData("review_frequency_days", nil)
	out, errs, err := States.Normalize(rec)
	if err != nil || len(errs) != 0 {
		t.Fatalf("unexpected errors: %v %v", errs, err)
	}
	freq, _, _ := out.GetInt64("review_frequency_days")
	if freq != c.ReviewFrequencyDaysDefault {
		t.Fatalf("expected default frequency %v, got %v", c.ReviewFrequencyDaysDefault, freq)
	}
	code, _, _ := out.GetString("state_code")
	if code != "CA" {
		t.Fatalf("unexpected state code %q", code)
	}
}

func TestNormalizeStateMissingKeyDropsRow(t *testing.T) {
	rec := stream.NewRecord()
	rec.SetData("code", "TX")
	out, errs, err := States.Normalize(rec)
	if err != nil {
		t.Fatal(err)
	}
	if !out.RecordIsNil() {
		t.Fatal("expected row without natural key to be dropped")
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 row-level error, got %v", len(errs))
	}
}

func TestNormalizeProviderType(t *testing.T) {
	mk := func(pt interface{}) stream.Record {
		rec := stream.NewRecord()
		rec.SetData("id", int64(9))
		rec.SetData("first_name", "Sam")
		rec.SetData("last_name", "Okafor")
		rec.SetData("provider_type", pt)
		return rec
	}
	// Recognised credential, normalized to upper case.
	out, errs, _ := Providers.Normalize(mk("np"))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	pt, _, _ := out.GetString("provider_type")
	if pt != c.ProviderTypeNP {
		t.Fatalf("expected NP, got %q", pt)
	}
	// Unrecognised credential: field nulled, row kept, error reported.
	out, errs, _ = Providers.Normalize(mk("MD"))
	if out.RecordIsNil() {
		t.Fatal("row with bad provider_type must survive")
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 cast error, got %v", len(errs))
	}
	if _, ok, _ := out.GetString("provider_type"); ok {
		t.Fatal("expected nil provider_type after cast failure")
	}
	if name, _, _ := out.GetString("full_name"); name != "Sam Okafor" {
		t.Fatalf("unexpected full name %q", name)
	}
}

func TestNormalizeUuidNaturalKeysSurvive(t *testing.T) {
	rec := stream.NewRecord()
	rec.SetData("id", "8f14e45f-ceea-467f-ab6f-d9a1b9f0f3c1")
	rec.SetData("first_name", "Priya")
	rec.SetData("last_name", "Nair")
	rec.SetData("state_license_id", "c4ca4238-a0b9-4338-8dcc-509a6f75849b")
	out, errs, err := Physicians.Normalize(rec)
	if err != nil || len(errs) != 0 {
		t.Fatalf("unexpected errors: %v %v", errs, err)
	}
	if out.RecordIsNil() {
		t.Fatal("row with a uuid natural key must not be dropped")
	}
	id, _, _ := out.GetIdString("physician_id")
	if id != "8f14e45f-ceea-467f-ab6f-d9a1b9f0f3c1" {
		t.Fatalf("unexpected physician_id %q", id)
	}
	lic, _, _ := out.GetIdString("state_license_id")
	if lic != "c4ca4238-a0b9-4338-8dcc-509a6f75849b" {
		t.Fatalf("unexpected state_license_id %q", lic)
	}
}

func TestNormalizeIntegerIdsStageAsStrings(t *testing.T) {
	rec := stream.NewRecord()
	rec.SetData("id", int64(31))
	rec.SetData("case_id", int64(12))
	rec.SetData("physician_id", int64(3))
	rec.SetData("review_status", "completed")
	out, errs, err := CaseReviews.Normalize(rec)
	if err != nil || len(errs) != 0 {
		t.Fatalf("unexpected errors: %v %v", errs, err)
	}
	id, _ := out.GetDataOk("review_id")
	if s, isString := id.(string); !isString || s != "31" {
		t.Fatalf("expected review_id staged as string %q, got %#v", "31", id)
	}
	fk, _ := out.GetDataOk("case_id")
	if s, isString := fk.(string); !isString || s != "12" {
		t.Fatalf("expected case_id staged as string %q, got %#v", "12", fk)
	}
}

func TestNormalizeCaseReviewDates(t *testing.T) {
	rec := stream.NewRecord()
	rec.SetData("id", int64(31))
	rec.SetData("case_id", int64(12))
	rec.SetData("physician_id", int64(3))
	rec.SetData("review_date", "2025-02-10T16:45:00Z") // day precision wanted.
	rec.SetData("review_status", "completed")
	rec.SetData("due_date", "2025-02-12")
	rec.SetData("completed_at", "2025-02-11T09:30:00Z")
	out, errs, err := CaseReviews.Normalize(rec)
	if err != nil || len(errs) != 0 {
		t.Fatalf("unexpected errors: %v %v", errs, err)
	}
	rd, _, _ := out.GetTime("review_date")
	if !rd.Equal(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected review_date truncated to its day, got %v", rd)
	}
	ca, _, _ := out.GetTime("completed_at")
	if ca.Hour() != 9 { // completed_at keeps its timestamp.
		t.Fatalf("expected completed_at to keep time of day, got %v", ca)
	}
}

func TestNormalizeContactsKeepBothSources(t *testing.T) {
	mk := func() stream.Record {
		rec := stream.NewRecord()
		rec.SetData("id", "51")
		rec.SetData("email", "dana@clinic.example")
		rec.SetData("firstname", "Dana")
		rec.SetData("lastname", "Reyes")
		rec.SetData("lifecyclestage", "customer")
		rec.SetData("createdate", "2024-01-01T00:00:00Z")
		return rec
	}
	fileRow, _, err := ContactsFile.Normalize(mk())
	if err != nil {
		t.Fatal(err)
	}
	apiRow, _, err := ContactsApi.Normalize(mk())
	if err != nil {
		t.Fatal(err)
	}
	fileSrc, _, _ := fileRow.GetString("contact_source")
	apiSrc, _, _ := apiRow.GetString("contact_source")
	if fileSrc != c.ContactSourceFile || apiSrc != c.ContactSourceApi {
		t.Fatalf("expected distinct discriminators, got %q and %q", fileSrc, apiSrc)
	}
	fileID, _, _ := fileRow.GetString("contact_id")
	apiID, _, _ := apiRow.GetString("contact_id")
	if fileID != apiID {
		t.Fatal("same natural identity must survive both paths")
	}
}

func TestNormalizeContactUpdatedAtFallback(t *testing.T) {
	rec := stream.NewRecord()
	rec.SetData("id", "7")
	rec.SetData("email", "lee@clinic.example")
	rec.SetData("updatedat", "2025-02-20T10:00:00Z") // no lastmodifieddate.
	out, errs, err := ContactsApi.Normalize(rec)
	if err != nil || len(errs) != 0 {
		t.Fatalf("unexpected errors: %v %v", errs, err)
	}
	ts, ok, _ := out.GetTime("updated_at")
	if !ok || ts.Day() != 20 {
		t.Fatalf("expected fallback updated_at, got %v", ts)
	}
	// Absent in both: null, never an error.
	rec2 := stream.NewRecord()
	rec2.SetData("id", "8")
	out2, errs2, err := ContactsApi.Normalize(rec2)
	if err != nil || len(errs2) != 0 {
		t.Fatalf("unexpected errors: %v %v", errs2, err)
	}
	if _, ok, _ := out2.GetTime("updated_at"); ok {
		t.Fatal("expected nil updated_at when absent everywhere")
	}
}

func TestNormalizeDeal(t *testing.T) {
	rec := stream.NewRecord()
	rec.SetData("id", "3")
	rec.SetData("dealname", "Mercy Health - Provider Supervision Platform")
	rec.SetData("amount", "125000")
	rec.SetData("dealstage", "closedwon")
	rec.SetData("closedate", "2025-01-15T00:00:00Z")
	out, errs, err := Deals.Normalize(rec)
	if err != nil || len(errs) != 0 {
		t.Fatalf("unexpected errors: %v %v", errs, err)
	}
	amount, _, _ := out.GetFloat64("amount")
	if amount != 125000 {
		t.Fatalf("unexpected amount %v", amount)
	}
	stage, _, _ := out.GetString("deal_stage")
	if stage != "closedwon" {
		t.Fatalf("unexpected stage %q", stage)
	}
}
