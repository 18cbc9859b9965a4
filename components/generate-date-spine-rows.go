package components

import (
	"strconv"
	"sync/atomic"
	"time"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

type DateSpineConfig struct {
	Log                 logger.Logger
	Name                string
	StartDate           time.Time // first calendar day to emit (inclusive).
	EndDate             time.Time // last calendar day to emit (inclusive).
	FieldName4Date      string    // output field holding the day as time.Time (midnight UTC).
	FieldName4DateKey   string    // optional output field holding the day as an int64 key, YYYYMMDD.
	FieldName4DayOfWeek string    // optional output field holding the day name.
	StepWatcher         *stats.StepWatcher
	WaitCounter         ComponentWaiter
	PanicHandlerFn      PanicHandlerFunc
}

// NewDateSpine emits one record per calendar day in [StartDate, EndDate]
// inclusive - no gaps, no duplicates. Input dates are truncated to their UTC
// day so callers can pass wall-clock times. An EndDate before StartDate
// produces no rows and a closed channel.
// Downstream, the spine is cross-joined against entities that need daily
// attribution so that days with no observed events still land one row.
func NewDateSpine(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*DateSpineConfig)
	if cfg.FieldName4Date == "" {
		cfg.Log.Panic(cfg.Name, " received bad config - please supply a field name for the generated date")
	}
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	startDay := stream.Day(cfg.StartDate)
	endDay := stream.Day(cfg.EndDate)
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		cfg.Log.Info(cfg.Name, " is running")
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) { // for each calendar day...
			rec := stream.NewRecord()
			rec.SetData(cfg.FieldName4Date, day)
			if cfg.FieldName4DateKey != "" {
				key, err := strconv.ParseInt(day.Format(c.DateKeyFormat), 10, 64)
				if err != nil { // unreachable for a valid time but guard anyway.
					cfg.Log.Panic(cfg.Name, " error building date key: ", err)
				}
				rec.SetData(cfg.FieldName4DateKey, key)
			}
			if cfg.FieldName4DayOfWeek != "" {
				rec.SetData(cfg.FieldName4DayOfWeek, day.Weekday().String())
			}
			atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
			select {
			case outputChan <- rec: // send the generated row...
			case controlAction := <-controlChan: // or if we have been asked to shutdown...
				controlAction.ResponseChan <- nil
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}
