package stream

import (
	"testing"
	"time"

	"github.com/paracelsus/martpipe/logger"
)

func TestMergeDataStreams(t *testing.T) {
	r1 := NewRecord()
	r1.SetData("a", 1)
	r2 := NewRecord()
	r2.SetData("b", 2)
	got, err := MergeDataStreams(r1, r2, false)
	if err != nil {
		t.Fatal("unexpected error merging disjoint records: ", err)
	}
	if got.GetData("a") != 1 || got.GetData("b") != 2 {
		t.Fatal("expected merged record to contain both fields; got ", got.GetDataMap())
	}
	// Overlapping field without overwrite permission should error.
	r3 := NewRecord()
	r3.SetData("a", 3)
	_, err = MergeDataStreams(r1, r3, false)
	if err == nil {
		t.Fatal("expected an error merging records with a conflicting field")
	}
	// With overwrite, the second stream wins.
	got, err = MergeDataStreams(r1, r3, true)
	if err != nil {
		t.Fatal("unexpected error merging with overwrite: ", err)
	}
	if got.GetData("a") != 3 {
		t.Fatal("expected overwritten value 3; got ", got.GetData("a"))
	}
	// Merging with a nil record copies the input.
	got, err = MergeDataStreams(r1, NewNilRecord(), false)
	if err != nil || got.GetData("a") != 1 {
		t.Fatal("expected copy of r1; got ", got.GetDataMap(), " err ", err)
	}
}

func TestTypedGetters(t *testing.T) {
	rec := NewRecord()
	rec.SetData("s", "hello")
	rec.SetData("nullField", nil)
	rec.SetData("i", "42")
	rec.SetData("f", "1.25")
	rec.SetData("badInt", "forty-two")
	rec.SetData("ts", "2025-06-01T10:30:00Z")
	rec.SetData("d", "2025-06-01")
	rec.SetData("bytes", []uint8("99"))

	if v, ok, err := rec.GetString("s"); v != "hello" || !ok || err != nil {
		t.Fatal("GetString failed: ", v, ok, err)
	}
	// Null fields return ok=false with no error - a null is not a defect.
	if _, ok, err := rec.GetString("nullField"); ok || err != nil {
		t.Fatal("expected null field to return not-ok without error; got ", ok, err)
	}
	// Absent fields behave like null fields.
	if _, ok, err := rec.GetInt64("absent"); ok || err != nil {
		t.Fatal("expected absent field to return not-ok without error; got ", ok, err)
	}
	if v, ok, err := rec.GetInt64("i"); v != 42 || !ok || err != nil {
		t.Fatal("GetInt64 failed: ", v, ok, err)
	}
	if v, ok, err := rec.GetInt64("bytes"); v != 99 || !ok || err != nil {
		t.Fatal("GetInt64 from bytes failed: ", v, ok, err)
	}
	if v, ok, err := rec.GetFloat64("f"); v != 1.25 || !ok || err != nil {
		t.Fatal("GetFloat64 failed: ", v, ok, err)
	}
	// A value of the wrong shape is a CastError, not a panic.
	if _, _, err := rec.GetInt64("badInt"); err == nil {
		t.Fatal("expected a CastError for a non-numeric int field")
	}
	if v, ok, err := rec.GetTime("ts"); err != nil || !ok || !v.Equal(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)) {
		t.Fatal("GetTime failed: ", v, ok, err)
	}
	if v, ok, err := rec.GetDate("d"); err != nil || !ok || !v.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("GetDate failed: ", v, ok, err)
	}
}

func TestGetIdString(t *testing.T) {
	rec := NewRecord()
	rec.SetData("uuid", "8f14e45f-ceea-467f-ab6f-d9a1b9f0f3c1")
	rec.SetData("serial", int64(42))
	rec.SetData("jsonNumber", float64(7))
	rec.SetData("bytes", []uint8(" Pr1 "))
	rec.SetData("blank", "   ")
	rec.SetData("fractional", 1.5)

	if v, ok, err := rec.GetIdString("uuid"); v != "8f14e45f-ceea-467f-ab6f-d9a1b9f0f3c1" || !ok || err != nil {
		t.Fatal("GetIdString uuid failed: ", v, ok, err)
	}
	// Integer ids render in decimal rather than erroring.
	if v, ok, err := rec.GetIdString("serial"); v != "42" || !ok || err != nil {
		t.Fatal("GetIdString serial failed: ", v, ok, err)
	}
	if v, ok, err := rec.GetIdString("jsonNumber"); v != "7" || !ok || err != nil {
		t.Fatal("GetIdString json number failed: ", v, ok, err)
	}
	if v, ok, err := rec.GetIdString("bytes"); v != "Pr1" || !ok || err != nil {
		t.Fatal("GetIdString bytes failed: ", v, ok, err)
	}
	// Blank ids read as null, not as a usable key.
	if _, ok, err := rec.GetIdString("blank"); ok || err != nil {
		t.Fatal("expected blank id to return not-ok without error; got ", ok, err)
	}
	if _, ok, err := rec.GetIdString("absent"); ok || err != nil {
		t.Fatal("expected absent id to return not-ok without error; got ", ok, err)
	}
	if _, _, err := rec.GetIdString("fractional"); err == nil {
		t.Fatal("expected a CastError for a fractional id")
	}
}

func TestJoinKeyValue(t *testing.T) {
	log := logger.NewLogger("martpipe", "error", false)
	r1 := NewRecord()
	r1.SetData("id", "P1")
	r1.SetData("day", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	r2 := NewRecord()
	r2.SetData("id", "P1")
	r2.SetData("day", time.Date(2025, 6, 1, 1, 0, 0, 0, time.FixedZone("x", 3600))) // same instant, different zone.
	if r1.JoinKeyValue(log, []string{"id", "day"}) != r2.JoinKeyValue(log, []string{"id", "day"}) {
		t.Fatal("expected join keys to match across time zones")
	}
	// Composite keys must not collide when field values shift across the separator.
	r3 := NewRecord()
	r3.SetData("a", "xy")
	r3.SetData("b", "z")
	r4 := NewRecord()
	r4.SetData("a", "x")
	r4.SetData("b", "yz")
	if r3.JoinKeyValue(log, []string{"a", "b"}) == r4.JoinKeyValue(log, []string{"a", "b"}) {
		t.Fatal("composite join keys collided")
	}
	// A missing key field joins like a null, it must not panic.
	r5 := NewRecord()
	r5.SetData("a", "x")
	_ = r5.JoinKeyValue(log, []string{"a", "missing"})
}

func TestDay(t *testing.T) {
	// 23:59:59+02:00 is 21:59:59 UTC, so the UTC day is June 1.
	in := time.Date(2025, 6, 1, 23, 59, 59, 0, time.FixedZone("plus2", 2*3600))
	if got := Day(in); !got.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected UTC day 2025-06-01; got ", got)
	}
	// 01:00+02:00 is 23:00 UTC the previous day.
	in = time.Date(2025, 6, 2, 1, 0, 0, 0, time.FixedZone("plus2", 2*3600))
	if got := Day(in); !got.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("expected UTC day 2025-06-01; got ", got)
	}
}
