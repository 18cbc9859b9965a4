package components

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/diegoholiveira/jsonlogic"
	c "github.com/paracelsus/martpipe/constants"
	log "github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

type FilterType string
type FilterMetadata string

type mapFilterFuncs map[FilterType]filterSetupFunc
type filterSetupFunc func(log log.Logger, metadata FilterMetadata) (filterFunc, error)
type filterFunc func(data stream.Record) (stream.Record, error)

const (
	FilterRowsLastRowInStream = "LastRow"
	FilterRowsJsonLogic       = "JsonLogic"
	FilterRowsAbortAfter      = "AbortAfter"
)

var filterTypes = mapFilterFuncs{
	FilterRowsLastRowInStream: setupLastRowInStream,  // FilterMetadata is not used
	FilterRowsJsonLogic:       setupJsonLogicFilter,  // FilterMetadata is expected to be the JSON Logic rule
	FilterRowsAbortAfter:      setupAbortAfterFilter, // FilterMetadata is expected to be the max record count
}

var (
	errFilterAbortAfterExceededCount = errors.New("record count exceeded")
)

type FilterRowsConfig struct {
	Log            log.Logger
	Name           string
	InputChan      chan stream.Record
	FilterType     FilterType     // one of the keys in the filterTypes map.
	FilterMetadata FilterMetadata // meaning depends on FilterType, see the filterTypes map.
	StepWatcher    *stats.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewFilterRows accepts a FilterRowsConfig{} and outputs rows if they match the given filter.
func NewFilterRows(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*FilterRowsConfig)
	fnGetFilter, ok := filterTypes[cfg.FilterType]
	if !ok {
		cfg.Log.Panic("unable to find filter function using name ", cfg.FilterType)
	}
	// Set up the filter by supplying the metadata.
	fnFilter, err := fnGetFilter(cfg.Log, cfg.FilterMetadata)
	if err != nil {
		cfg.Log.Panic("unable to setup filter ", cfg.FilterType, ": ", err)
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
		// Function to call the filter and output data if needed.
		fnFilterAndSend := func(rec stream.Record) {
			data, err := fnFilter(rec)
			if err != nil { // if the filter function failed (which may be deliberate)...
				cfg.Log.Panic(cfg.Name, " aborting due to error: ", err)
			}
			if !data.RecordIsNil() { // if the filter returned a record...
				safeSend(data, outputChan, controlChan, sendNilControlResponse)
			}
		}
		// Process input data.
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else { // else we have input to process...
					fnFilterAndSend(rec)
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
			if atomic.AddInt64(&rowCount, 0) > 0 { // if we did any filtering (there were input records)...
				fnFilterAndSend(stream.NewNilRecord()) // send nil data to the filter as it may want to output a record.
			}
			close(outputChan) // we're done so close the channel we created.
			cfg.Log.Info(cfg.Name, " complete")
		}
	}()
	return
}

// setupLastRowInStream returns a filterFunc that will remember the input row, but only output the last
// remembered row when called with nil input.
// FilterMetadata is not used.
func setupLastRowInStream(log log.Logger, metadata FilterMetadata) (filterFunc, error) {
	lastRec := make(map[string]interface{})
	// Return the worker function.
	return func(data stream.Record) (stream.Record, error) {
		if !data.RecordIsNil() { // if we have been given an input record to save...
			for key, value := range data.GetDataMap() {
				lastRec[key] = value // copy the input data map.
			}
			return stream.NewNilRecord(), nil // return a blank record as this filter only outputs at the end.
		} else { // else we should return the last saved record...
			sr := stream.NewRecord()
			for key, value := range lastRec {
				sr.SetData(key, value)
			}
			return sr, nil
		}
	}, nil
}

// setupJsonLogicFilter returns a filterFunc, which can be used to filter records using JSON Logic.
// Supply the JSON Logic rule as the metadata input parameter.
// When called with a record, the filterFunc will return the data if the JSON Logic rule returns true,
// else it returns a nil record.
func setupJsonLogicFilter(log log.Logger, metadata FilterMetadata) (filterFunc, error) {
	rule := string(metadata)
	if err := ValidateJsonLogic(rule); err != nil {
		return nil, err
	}
	// Return the worker function.
	return func(data stream.Record) (stream.Record, error) {
		if !data.RecordIsNil() {
			matched, err := JsonLogicMatches(data, rule)
			if err != nil {
				log.Panic(err)
			}
			if matched {
				return data, nil
			}
		}
		return stream.NewNilRecord(), nil // return nil if data is nil.
	}, nil
}

// setupAbortAfterFilter returns a filterFunc, which can be used to count records and cause an error if the count
// exceeds the (max) integer supplied in the metadata.
// If max == 0 then the filter is essentially disabled.
func setupAbortAfterFilter(log log.Logger, metadata FilterMetadata) (filterFunc, error) {
	count := 0
	max, err := strconv.Atoi(string(metadata))
	if err != nil {
		return nil, fmt.Errorf("error converting filter metadata value '%v' to an integer: %w", metadata, err)
	}
	return func(data stream.Record) (stream.Record, error) {
		if !data.RecordIsNil() { // if there is a valid record...
			count++
			if max != 0 && count > max { // if the count has exceeded the number of rows we are allowed to pass through...
				return stream.NewNilRecord(), errFilterAbortAfterExceededCount
			}
		} // else pass the record downstream...
		return data, nil
	}, nil
}

// ValidateJsonLogic checks the rule parses as a JSON Logic expression.
func ValidateJsonLogic(rule string) error {
	if !jsonlogic.IsValid(strings.NewReader(rule)) {
		return fmt.Errorf("invalid %v rule: %v", FilterRowsJsonLogic, rule)
	}
	return nil
}

// JsonLogicMatches applies the JSON Logic rule to the record's data map and
// reports whether the rule evaluated to true.
func JsonLogicMatches(data stream.Record, rule string) (bool, error) {
	var result bytes.Buffer
	if err := applyJsonLogic(data, rule, &result); err != nil {
		return false, err
	}
	return strings.TrimSpace(result.String()) == "true", nil
}

// applyJsonLogic marshals the record to JSON and applies the given rule, writing the outcome to result.
func applyJsonLogic(data stream.Record, rule string, result *bytes.Buffer) error {
	// Convert input data to json.
	jsonData, err := json.Marshal(data.GetDataMap())
	if err != nil {
		return fmt.Errorf("error marshalling data before applying JSON logic: %v", err)
	}
	jsr := strings.NewReader(string(jsonData))
	// Apply logic, returned via reference.
	logic := strings.NewReader(rule)
	err = jsonlogic.Apply(logic, jsr, result)
	if err != nil {
		return fmt.Errorf("error applying JSON logic: %v", err)
	}
	return nil
}
