package components

import (
	"sync"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

type CartesianProductConfig struct {
	Log                 logger.Logger
	Name                string
	InputChannels       []chan stream.Record
	AllowFieldOverwrite bool
	StepWatcher         *stats.StepWatcher
	WaitCounter         ComponentWaiter
	PanicHandlerFn      PanicHandlerFunc
}

// NewCartesianProduct consumes all records from every input channel into
// memory, then emits one merged record per combination - the cartesian
// product of the inputs. This is how a date spine is attributed to every
// entity that needs one row per day.
// If any input channel yields zero records the product is empty.
func NewCartesianProduct(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*CartesianProductConfig)
	if len(cfg.InputChannels) <= 1 {
		cfg.Log.Panic(cfg.Name, " must use more than 1 input stream with CartesianProduct")
	}
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		cfg.Log.Info(cfg.Name, " is running")
		defer cfg.Log.Info(cfg.Name, " complete")
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		// Slice to hold all input records in memory!
		records := make([][]stream.Record, len(cfg.InputChannels))
		shutdownChans := make([]chan ControlAction, len(cfg.InputChannels))
		wg := sync.WaitGroup{}
		// Read all input records from all input channels using goroutines.
		for idx, ic := range cfg.InputChannels { // for each input channel...
			shutdownChans[idx] = make(chan ControlAction, 1)
			wg.Add(1)
			go func(idx int, ic chan stream.Record) {
				defer wg.Done()
				for {
					select {
					case rec, ok := <-ic:
						if !ok { // if the input channel closed...
							return
						}
						records[idx] = append(records[idx], rec)
					case action := <-shutdownChans[idx]: // or if we have been shutdown...
						sendNilControlResponse(action)
						return
					}
				}
			}(idx, ic)
		}
		waitChan := make(chan struct{}, 1)
		go func() {
			wg.Wait()
			waitChan <- struct{}{}
		}()
		// Wait for all records to be collected from input channels.
		select {
		case <-waitChan:
		case controlAction := <-controlChan: // if we were asked to shutdown...
			for _, shutdownChan := range shutdownChans {
				shutdownChan <- ControlAction{Action: Shutdown, ResponseChan: make(chan error, 1)}
			}
			sendNilControlResponse(controlAction)
			return
		}
		// Produce the product now we have all input records.
		sizes := make([]int, len(records))
		for idx, rec := range records {
			sizes[idx] = len(rec)
		}
		cni := newCartesianIterator(sizes) // each elem in the returned []int indexes into records.
		for cni.next() {
			indexes := cni.value()
			last := len(indexes) - 1 // merge every channel's record into a copy of the last channel's record.
			outRec, err := stream.MergeDataStreams(records[last][indexes[last]], stream.NewNilRecord(), cfg.AllowFieldOverwrite)
			if err != nil {
				cfg.Log.Panic("error merging streams")
			}
			for idx := 0; idx < last; idx++ { // for each channel to merge into the last record...
				outRec, err = stream.MergeDataStreams(outRec, records[idx][indexes[idx]], cfg.AllowFieldOverwrite)
				if err != nil { // if there was a merge conflict...
					if !cfg.AllowFieldOverwrite {
						cfg.Log.Panic(err)
					} else {
						cfg.Log.Warn(err)
					}
				}
			}
			if ok := safeSend(outRec, outputChan, controlChan, sendNilControlResponse); !ok {
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
		close(outputChan)
	}()
	return
}

// cartesianIterator walks every combination of indexes into slices of the
// given sizes. The least significant index iterates first:
// sizes{2,2} yields {0,0} {1,0} {0,1} {1,1}.
type cartesianIterator struct {
	sizes      []int
	curValues  []int
	totalIters int
	curIter    int
}

func newCartesianIterator(sizes []int) *cartesianIterator {
	cn := &cartesianIterator{}
	cn.sizes = sizes
	cn.curValues = make([]int, len(sizes))
	cn.totalIters = 1
	for _, mv := range cn.sizes { // the total is the product of all sizes.
		cn.totalIters = cn.totalIters * mv
	}
	return cn
}

// bumpIndexes is called recursively to carry into the next element.
func (cn *cartesianIterator) bumpIndexes(elem int) {
	// Subtract 1 below because we were given sizes not max values.
	if cn.curValues[elem] < cn.sizes[elem]-1 { // if there is room to bump this element by 1...
		cn.curValues[elem]++
	} else { // else we have reached the max value for this element...
		if (elem + 1) <= len(cn.sizes) { // if there is another element beyond...
			cn.bumpIndexes(elem + 1) // recurse
			cn.curValues[elem] = 0   // reset current
		}
	}
}

// next calculates the next set of values to fetch by calling value().
// Return true when there are more values else false.
func (cn *cartesianIterator) next() bool {
	if cn.curIter == 0 {
		cn.curIter++
		return cn.totalIters > 0
	} else if cn.curIter < cn.totalIters {
		cn.bumpIndexes(0)
		cn.curIter++
		return true
	}
	return false
}

// value returns the current values set up by next().
func (cn cartesianIterator) value() []int {
	return cn.curValues
}
