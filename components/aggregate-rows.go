package components

import (
	"fmt"
	"sync/atomic"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

// AggregateState accumulates values for one group and one output field.
type AggregateState interface {
	Add(rec stream.Record) error
	Result() interface{}
}

// AggregateSpec binds an output field name to a factory producing a fresh
// accumulator per group.
type AggregateSpec struct {
	OutputField string
	NewState    func() AggregateState
}

type GroupAggregatorConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	GroupByFields  []string
	Aggregates     []AggregateSpec
	StepWatcher    *stats.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewGroupAggregator consumes the whole input stream, groups records by
// GroupByFields and emits one record per group carrying the group fields
// plus each aggregate's result. Groups are emitted in first-seen order.
func NewGroupAggregator(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*GroupAggregatorConfig)
	if len(cfg.GroupByFields) == 0 {
		cfg.Log.Panic(cfg.Name, " missing group-by fields")
	}
	if len(cfg.Aggregates) == 0 {
		cfg.Log.Panic(cfg.Name, " missing aggregates")
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
		type group struct {
			firstRec stream.Record // holds the group-by field values.
			states   []AggregateState
		}
		groups := make(map[string]*group)
		groupOrder := make([]string, 0) // first-seen emit order.
		for {
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel closed...
					for _, key := range groupOrder { // emit one record per group...
						g := groups[key]
						outRec := stream.NewRecord()
						for _, f := range cfg.GroupByFields {
							v, _ := g.firstRec.GetDataOk(f)
							outRec.SetData(f, v)
						}
						for idx, agg := range cfg.Aggregates {
							outRec.SetData(agg.OutputField, g.states[idx].Result())
						}
						atomic.AddInt64(&rowCount, 1)
						if ok := safeSend(outRec, outputChan, controlChan, sendNilControlResponse); !ok {
							cfg.Log.Info(cfg.Name, " shutdown")
							return
						}
					}
					close(outputChan)
					return
				}
				key := rec.JoinKeyValue(cfg.Log, cfg.GroupByFields)
				g, exists := groups[key]
				if !exists { // if this is a new group...
					g = &group{firstRec: rec, states: make([]AggregateState, len(cfg.Aggregates))}
					for idx, agg := range cfg.Aggregates {
						g.states[idx] = agg.NewState()
					}
					groups[key] = g
					groupOrder = append(groupOrder, key)
				}
				for _, state := range g.states {
					if err := state.Add(rec); err != nil {
						cfg.Log.Panic(cfg.Name, " aggregate error: ", err)
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

// CountIf counts records for which the predicate returns true.
func CountIf(predicate func(rec stream.Record) bool) func() AggregateState {
	return func() AggregateState {
		return &countIfState{predicate: predicate}
	}
}

type countIfState struct {
	predicate func(rec stream.Record) bool
	count     int64
}

func (s *countIfState) Add(rec stream.Record) error {
	if s.predicate(rec) {
		s.count++
	}
	return nil
}

func (s *countIfState) Result() interface{} {
	return s.count
}

// AvgFloat averages the named numeric field, skipping null values.
// The result is nil when no record contributed a value.
func AvgFloat(field string) func() AggregateState {
	return func() AggregateState {
		return &avgFloatState{field: field}
	}
}

type avgFloatState struct {
	field string
	sum   float64
	count int64
}

func (s *avgFloatState) Add(rec stream.Record) error {
	v, ok, err := rec.GetFloat64(s.field)
	if err != nil {
		return err
	}
	if !ok { // null values do not contribute...
		return nil
	}
	s.sum += v
	s.count++
	return nil
}

func (s *avgFloatState) Result() interface{} {
	if s.count == 0 {
		return nil
	}
	return s.sum / float64(s.count)
}

// CountDistinct counts distinct non-null values of the named field.
func CountDistinct(field string) func() AggregateState {
	return func() AggregateState {
		return &countDistinctState{field: field, seen: make(map[string]struct{})}
	}
}

type countDistinctState struct {
	field string
	seen  map[string]struct{}
}

func (s *countDistinctState) Add(rec stream.Record) error {
	v, ok := rec.GetDataOk(s.field)
	if !ok || v == nil { // null values do not contribute...
		return nil
	}
	s.seen[fmt.Sprintf("%v", v)] = struct{}{}
	return nil
}

func (s *countDistinctState) Result() interface{} {
	return int64(len(s.seen))
}
