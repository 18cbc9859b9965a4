package components

import (
	"sync/atomic"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

// NormalizeFunc converts one raw record into its normalized shape.
// Fields that fail a type cast come back in castErrs and are expected to be
// nil in the output record; the row itself survives. A nil output record
// means the row must be dropped. A non-nil err aborts the whole step.
type NormalizeFunc func(rec stream.Record) (out stream.Record, castErrs []*stream.CastError, err error)

type NormalizeRowsConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	NormalizeFn    NormalizeFunc
	StepWatcher    *stats.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewNormalizeRows applies cfg.NormalizeFn to every input record.
// Cast failures are logged per field and never kill the run; rows rejected
// by the normalize function (nil output) are counted and dropped.
func NewNormalizeRows(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*NormalizeRowsConfig)
	if cfg.NormalizeFn == nil {
		cfg.Log.Panic(cfg.Name, " missing normalize function")
	}
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		droppedCount := int64(0)
		castErrCount := int64(0)
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else { // else we have input to process...
					outRec, castErrs, err := cfg.NormalizeFn(rec)
					if err != nil { // if the normalize function failed hard...
						cfg.Log.Panic(cfg.Name, " aborting due to error: ", err)
					}
					for _, ce := range castErrs { // cast failures null the field, keep the row...
						castErrCount++
						cfg.Log.Warn(cfg.Name, " cast failure: ", ce.Error())
					}
					if outRec.RecordIsNil() { // if the row was rejected...
						droppedCount++
						continue
					}
					if ok := safeSend(outRec, outputChan, controlChan, sendNilControlResponse); !ok {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
					atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown { // if we were asked to shutdown...
			controlAction.ResponseChan <- nil // respond that we're done with a nil error.
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		} else { // else we ran out of rows to process...
			if droppedCount > 0 || castErrCount > 0 {
				cfg.Log.Warn(cfg.Name, " dropped ", droppedCount, " rows; nulled fields for ", castErrCount, " cast failures")
			}
			close(outputChan) // we're done so close the channel we created.
			cfg.Log.Info(cfg.Name, " complete")
		}
	}()
	return
}
