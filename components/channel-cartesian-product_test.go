package components

import (
	"testing"
	"time"

	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
)

func TestNewCartesianProduct(t *testing.T) {
	log := logger.NewLogger("cartesian product test", "info", true)

	mkChan := func(field string, values ...interface{}) chan stream.Record {
		ch := make(chan stream.Record, len(values))
		for _, v := range values {
			rec := stream.NewRecord()
			rec.SetData(field, v)
			ch <- rec
		}
		close(ch)
		return ch
	}

	// Test 1.
	log.Info("Test 1: confirm the product of 2x3 inputs is 6 merged rows...")
	cfg := &CartesianProductConfig{
		Log:  log,
		Name: "Test1 CartesianProduct",
		InputChannels: []chan stream.Record{
			mkChan("physician_id", int64(1), int64(2)),
			mkChan("metric_date", "2025-03-01", "2025-03-02", "2025-03-03"),
		},
	}
	outputChan, _ := NewCartesianProduct(cfg)
	seen := make(map[string]int)
	count := 0
	for rec := range outputChan {
		count++
		p, ok, err := rec.GetInt64("physician_id")
		if err != nil || !ok {
			t.Fatal("output row missing physician_id")
		}
		d, ok, err := rec.GetString("metric_date")
		if err != nil || !ok {
			t.Fatal("output row missing metric_date")
		}
		seen[d]++
		_ = p
	}
	if count != 6 {
		t.Fatalf("expected 6 output rows, got %v", count)
	}
	for d, n := range seen {
		if n != 2 { // each date should appear once per physician.
			t.Fatalf("expected date %v twice, got %v", d, n)
		}
	}

	// Test 2.
	log.Info("Test 2: confirm an empty input yields an empty product...")
	cfg = &CartesianProductConfig{
		Log:  log,
		Name: "Test2 CartesianProduct",
		InputChannels: []chan stream.Record{
			mkChan("physician_id", int64(1), int64(2)),
			mkChan("metric_date"),
		},
	}
	outputChan, _ = NewCartesianProduct(cfg)
	count = 0
	for range outputChan {
		count++
	}
	if count != 0 {
		t.Fatalf("expected empty product, got %v rows", count)
	}

	// Test 3.
	log.Info("Test 3: confirm CartesianProduct respects shutdown requests...")
	cfg = &CartesianProductConfig{
		Log:  log,
		Name: "Test3 CartesianProduct",
		InputChannels: []chan stream.Record{
			make(chan stream.Record, 1), // never closed so the component stays in its build phase.
			make(chan stream.Record, 1),
		},
	}
	_, controlChan := NewCartesianProduct(cfg)
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{Action: Shutdown, ResponseChan: responseChan}
	select { // confirm shutdown response...
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for CartesianProduct to shutdown.")
	case <-responseChan: // if CartesianProduct confirmed shutdown...
		// continue
	}
}
