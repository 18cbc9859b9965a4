package components

import (
	"strings"
	"sync/atomic"

	om "github.com/cevaris/ordered_map"
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

type JoinType int

const (
	LeftJoin JoinType = iota
	InnerJoin
)

type LookupJoinConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record // the driving stream.
	LookupChan     chan stream.Record // drained into memory before joining.
	JoinKeys       *om.OrderedMap     // map of driving field to lookup field.
	LookupFields   []string           // fields copied from the lookup record onto each output record; "from:to" renames on copy.
	JoinType       JoinType
	StepWatcher    *stats.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewLookupJoin drains LookupChan into an in-memory map keyed by the lookup
// side of JoinKeys, then streams InputChan through it. Each driving record
// that matches emits one output record per matching lookup record with
// LookupFields copied on. With LeftJoin an unmatched driving record is still
// emitted, with every lookup field set to nil; with InnerJoin it is dropped.
func NewLookupJoin(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*LookupJoinConfig)
	if cfg.JoinKeys == nil || cfg.JoinKeys.Len() == 0 {
		cfg.Log.Panic(cfg.Name, " missing join keys")
	}
	if len(cfg.LookupFields) == 0 {
		cfg.Log.Panic(cfg.Name, " missing lookup fields")
	}
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	drivingKeys := stream.OrderedMapKeys(cfg.Log, cfg.JoinKeys, false)
	lookupKeys := stream.OrderedMapKeys(cfg.Log, cfg.JoinKeys, true)
	// Unpack "from:to" rename specs up front.
	fromFields := make([]string, len(cfg.LookupFields))
	toFields := make([]string, len(cfg.LookupFields))
	for idx, f := range cfg.LookupFields {
		if pos := strings.Index(f, ":"); pos >= 0 {
			fromFields[idx] = f[:pos]
			toFields[idx] = f[pos+1:]
		} else {
			fromFields[idx] = f
			toFields[idx] = f
		}
	}
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
		// Build phase: drain the lookup channel into memory.
		lookup := make(map[string][]stream.Record)
		buildDone := false
		for !buildDone {
			select {
			case rec, ok := <-cfg.LookupChan:
				if !ok { // if the lookup channel closed...
					buildDone = true
					break
				}
				key := rec.JoinKeyValue(cfg.Log, lookupKeys)
				lookup[key] = append(lookup[key], rec)
			case controlAction := <-controlChan: // if we have been asked to shutdown...
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
		cfg.Log.Debug(cfg.Name, " lookup build complete with ", len(lookup), " distinct keys")
		// Probe phase: stream the driving channel through the lookup.
		for {
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel closed...
					close(outputChan)
					return
				}
				key := rec.JoinKeyValue(cfg.Log, drivingKeys)
				matches := lookup[key]
				if len(matches) == 0 { // if there was no match...
					if cfg.JoinType == InnerJoin {
						continue
					}
					outRec := stream.NewRecord()
					rec.CopyTo(outRec)
					for _, f := range toFields {
						outRec.SetData(f, nil)
					}
					atomic.AddInt64(&rowCount, 1)
					if ok := safeSend(outRec, outputChan, controlChan, sendNilControlResponse); !ok {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
					continue
				}
				for _, match := range matches { // for each matching lookup record...
					outRec := stream.NewRecord()
					rec.CopyTo(outRec)
					for idx, f := range fromFields {
						v, _ := match.GetDataOk(f)
						outRec.SetData(toFields[idx], v)
					}
					atomic.AddInt64(&rowCount, 1)
					if ok := safeSend(outRec, outputChan, controlChan, sendNilControlResponse); !ok {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
				}
			case controlAction := <-controlChan: // if we have been asked to shutdown...
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
	}()
	return
}
