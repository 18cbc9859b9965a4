package rawinput

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/rdbms"
	"github.com/paracelsus/martpipe/stream"
)

func TestTableReaderTagsProvenance(t *testing.T) {
	log := logger.NewLogger("table reader test", "error", true)
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	mock.ExpectQuery("select id, code from states").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code"}).
			AddRow("8f14e45f-ceea-467f-ab6f-d9a1b9f0f3c1", "CA"))
	extractedAt := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	outputChan, _ := NewTableReader(&TableReaderConfig{
		Log:         log,
		Db:          &rdbms.Connection{Db: db, DbType: "postgres"},
		TableName:   "states",
		Columns:     []string{"id", "code"},
		ExtractedAt: extractedAt,
	})
	var rows []stream.Record
	for rec := range outputChan {
		rows = append(rows, rec)
	}
	if len(rows) != 1 {
		t.Fatal("expected 1 row, got ", len(rows))
	}
	rec := rows[0]
	if id, _, _ := rec.GetIdString("id"); id != "8f14e45f-ceea-467f-ab6f-d9a1b9f0f3c1" {
		t.Fatal("unexpected id ", id)
	}
	// Each landed row carries the full provenance set.
	if ts, ok, err := rec.GetTime(c.FieldExtractedAt); err != nil || !ok || !ts.Equal(extractedAt) {
		t.Fatal("unexpected extract time: ", ts, ok, err)
	}
	if _, ok, err := rec.GetTime(c.FieldBatchedAt); err != nil || !ok {
		t.Fatal("expected a batch time on every row: ", ok, err)
	}
	if v, _, _ := rec.GetString(c.FieldSchemaVersion); v != c.SchemaVersion {
		t.Fatal("unexpected schema version ", v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
