package rawinput

import (
	"testing"
	"time"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
)

func TestCsvRecords(t *testing.T) {
	log := logger.NewLogger("csv records test", "error", true)
	extractedAt := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)
	data := []byte("Email,FIRSTNAME,lastname,lifecyclestage\n" +
		"dana@clinic.example,Dana,Reyes,customer\n" +
		"ragged,row\n" +
		"kim@clinic.example,Kim,,lead\n")
	records, err := CsvRecords(log, data, "contacts.csv", extractedAt)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 { // the ragged row is skipped.
		t.Fatalf("expected 2 records, got %v", len(records))
	}
	email, _, _ := records[0].GetString("email") // headers are lower-cased.
	if email != "dana@clinic.example" {
		t.Fatalf("unexpected email %q", email)
	}
	// Empty cells land as nil, not empty string.
	if v, ok := records[1].GetDataOk("lastname"); !ok || v != nil {
		t.Fatalf("expected nil lastname, got %v", v)
	}
	src, _, _ := records[0].GetString(FieldSourceFile)
	if src != "contacts.csv" {
		t.Fatalf("unexpected source file %q", src)
	}
	ts, ok, err := records[0].GetTime(c.FieldExtractedAt)
	if err != nil || !ok || !ts.Equal(extractedAt) {
		t.Fatalf("unexpected extract time %v", ts)
	}
	// Every landed row carries the full provenance set.
	if _, ok, err := records[0].GetTime(c.FieldBatchedAt); err != nil || !ok {
		t.Fatalf("expected a batch time on every row: %v %v", ok, err)
	}
	if v, _, _ := records[0].GetString(c.FieldSchemaVersion); v != c.SchemaVersion {
		t.Fatalf("unexpected schema version %q", v)
	}
}

func TestCsvRecordsNoHeader(t *testing.T) {
	log := logger.NewLogger("csv records test", "error", true)
	if _, err := CsvRecords(log, []byte(""), "empty.csv", time.Now()); err == nil {
		t.Fatal("expected error for empty file")
	}
}
