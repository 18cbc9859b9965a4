package components

import (
	"fmt"
	"strings"
	"sync/atomic"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/rdbms"
	s "github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

type SqlQueryWithArgsConfig struct {
	Log            logger.Logger
	Name           string
	Db             rdbms.Connector
	StepWatcher    *s.StepWatcher // optional ptr to object that can gather step stats.
	WaitCounter    ComponentWaiter
	Sqltext        string
	Args           []interface{}
	PanicHandlerFn PanicHandlerFunc
}

type SqlQueryWithReplaceConfig struct {
	Log            logger.Logger
	Name           string
	Db             rdbms.Connector
	StepWatcher    *s.StepWatcher // optional ptr to object that can gather step stats.
	WaitCounter    ComponentWaiter
	Sqltext        string
	Args           []interface{}
	Replacements   map[string]string
	PanicHandlerFn PanicHandlerFunc
}

// NewSqlQueryWithArgs executes SQL and fetches rows onto the output channel.
// Args can be nil if you don't want to use bind variables.
func NewSqlQueryWithArgs(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*SqlQueryWithArgsConfig)
	// Make a channel for the SQL query results.
	outputChan := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1) // make a control channel that receives a chan error.
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		// Add to wait group to say we have started.
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		// Get the data.
		execSql(cfg.Log, cfg.Name, cfg.Db, cfg.StepWatcher, cfg.Sqltext, cfg.Args, outputChan, controlChan)
	}()
	return outputChan, controlChan
}

// NewSqlQueryWithReplace will execute SQL with args, but replace strings within the supplied SQL first.
func NewSqlQueryWithReplace(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*SqlQueryWithReplaceConfig)
	// Make a channel for the SQL query results.
	outputChan := make(chan stream.Record, int(c.ChanSize))
	controlChan := make(chan ControlAction, 1) // make a control channel that receives a chan error.
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		// Add to wait group to say we have started.
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		// Replace SQL text.
		newSQL := cfg.Sqltext
		for k, v := range cfg.Replacements { // for each key in map of replacements...
			newSQL = strings.Replace(newSQL, k, v, -1)
		}
		execSql(cfg.Log, cfg.Name, cfg.Db, cfg.StepWatcher, newSQL, cfg.Args, outputChan, controlChan)
	}()
	return outputChan, controlChan
}

// execSql executes SQL using the supplied args returning results onto the output channel.
func execSql(log logger.Logger,
	name string,
	db rdbms.Connector,
	stepWatcher *s.StepWatcher,
	sqltext string,
	args []interface{},
	outputChan chan stream.Record,
	controlChan chan ControlAction,
) {
	if sqltext == "" {
		log.Info(name, " received unexpected empty SQL - skipping")
		return
	}
	rowCount := int64(0)
	if stepWatcher != nil { // if the caller supplied a callback function for us to report row count and channel stats...
		stepWatcher.StartWatching(&rowCount, &outputChan) // supply ptr to this step's rowCount variable and chan for length stats.
		defer stepWatcher.StopWatching()
	}
	// Execute SQL query.
	var controlAction ControlAction
	if len(args) > 0 {
		log.Info(name, " executing SQL: ", sqltext, "; args = ", args)
	} else {
		log.Info(name, " executing SQL: ", sqltext)
	}
	rows, err := db.Query(sqltext, args...)
	if err != nil {
		log.Panic(fmt.Sprintf("%v received error during database query using SQL: '%v' %v", name, sqltext, err))
	}
	// Set up column types for Scan(...)
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		log.Panic(name, " unable to fetch column types: ", err)
	}
	lenColTypes := len(colTypes)
	scanPtrs := make([]interface{}, lenColTypes)
	scanVals := make([]interface{}, lenColTypes)
	for idx := 0; idx < lenColTypes; idx++ {
		scanPtrs[idx] = &scanVals[idx]
	}
	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			log.Panic(name, " unable to scan row: ", err)
		}
		// Populate map[string]interface{} with the scanned values.
		row := stream.NewRecord()
		for idx := range scanVals {
			row.SetData(colTypes[idx].Name(), scanVals[idx])
		}
		log.Trace(name, " producing row onto outputChan: ", row)
		if rowSentOK := safeSend(row, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
			log.Info(name, " shutdown")
			return
		}
		atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
		// Check for shutdown requests.
		select {
		case controlAction = <-controlChan: // if we have been asked to shutdown...
			err = rows.Close()
			var errResponse error
			if err != nil { // if there was an error closing the row set...
				errResponse = fmt.Errorf("%v error closing SQL result set: %v", name, err) // don't create more panics.
			}
			controlAction.ResponseChan <- errResponse // confirm that we're shutdown by sending the above error which may be nil.
			log.Info(name, " shutdown")
			return
		default: // else we can continue...
		}
	}
	// Cleanup.
	if err := rows.Close(); err != nil { // if there was an error closing the row set...
		log.Panic(fmt.Sprintf("error closing SQL result set in %v", name))
	}
	close(outputChan) // end gracefully; tell downstream components that we're done.
	log.Info(name, " complete")
}
