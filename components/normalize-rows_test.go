package components

import (
	"testing"
	"time"

	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
)

func TestNewNormalizeRows(t *testing.T) {
	log := logger.NewLogger("normalize rows test", "info", true)

	inputChan := make(chan stream.Record, 3)
	mkRow := func(id interface{}, age interface{}) {
		rec := stream.NewRecord()
		rec.SetData("case_id", id)
		rec.SetData("patient_age", age)
		inputChan <- rec
	}
	mkRow(int64(1), int64(52))
	mkRow(int64(2), "not-a-number") // bad cast: field goes nil, row survives.
	mkRow(nil, int64(33))           // missing natural key: row dropped.
	close(inputChan)

	normalize := func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
		var castErrs []*stream.CastError
		out := stream.NewRecord()
		id, ok, err := rec.GetInt64("case_id")
		if err != nil || !ok { // no natural key, reject the row.
			return stream.NewNilRecord(), castErrs, nil
		}
		out.SetData("case_id", id)
		age, ok, err := rec.GetInt64("patient_age")
		if err != nil {
			castErrs = append(castErrs, err.(*stream.CastError))
			out.SetData("patient_age", nil)
		} else if ok {
			out.SetData("patient_age", age)
		} else {
			out.SetData("patient_age", nil)
		}
		return out, castErrs, nil
	}

	cfg := &NormalizeRowsConfig{
		Log:         log,
		Name:        "Test NormalizeRows",
		InputChan:   inputChan,
		NormalizeFn: normalize,
	}
	outputChan, _ := NewNormalizeRows(cfg)
	got := make([]stream.Record, 0)
	for rec := range outputChan {
		got = append(got, rec)
	}
	if len(got) != 2 { // the keyless row must be dropped, the bad-cast row kept.
		t.Fatalf("expected 2 output rows, got %v", len(got))
	}
	if _, ok, _ := got[0].GetInt64("patient_age"); !ok {
		t.Fatal("expected valid patient_age on first row")
	}
	if _, ok, _ := got[1].GetInt64("patient_age"); ok {
		t.Fatal("expected nil patient_age after cast failure")
	}
	if id, _, _ := got[1].GetInt64("case_id"); id != 2 {
		t.Fatalf("expected the bad-cast row to keep its key, got %v", id)
	}
}

func TestNewNormalizeRowsShutdown(t *testing.T) {
	log := logger.NewLogger("normalize rows test", "error", true)
	cfg := &NormalizeRowsConfig{
		Log:       log,
		Name:      "Test NormalizeRows shutdown",
		InputChan: make(chan stream.Record, 1), // never closed.
		NormalizeFn: func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
			return rec, nil, nil
		},
	}
	_, controlChan := NewNormalizeRows(cfg)
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{Action: Shutdown, ResponseChan: responseChan}
	select { // confirm shutdown response...
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for NormalizeRows to shutdown.")
	case <-responseChan: // if NormalizeRows confirmed shutdown...
		// continue
	}
}
