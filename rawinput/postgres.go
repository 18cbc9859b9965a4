package rawinput

import (
	"fmt"
	"strings"
	"time"

	"github.com/paracelsus/martpipe/components"
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/rdbms"
	"github.com/paracelsus/martpipe/stats"
	"github.com/paracelsus/martpipe/stream"
)

type TableReaderConfig struct {
	Log            logger.Logger
	Db             rdbms.Connector
	TableName      string
	Columns        []string // explicit column list; the replica schema is known.
	ExtractedAt    time.Time
	StepWatcher    *stats.StepWatcher
	WaitCounter    components.ComponentWaiter
	PanicHandlerFn components.PanicHandlerFunc
}

// NewTableReader streams one replica table's rows as records, tagging each
// with the full provenance set: extract time, batch time and schema version.
// The output is a regular component channel pair so it can feed normalizers
// directly.
func NewTableReader(cfg *TableReaderConfig) (chan stream.Record, chan components.ControlAction) {
	sqltext := fmt.Sprintf("select %v from %v", strings.Join(cfg.Columns, ", "), cfg.TableName)
	queryChan, queryControlChan := components.NewSqlQueryWithArgs(&components.SqlQueryWithArgsConfig{
		Log:            cfg.Log,
		Name:           fmt.Sprintf("read table %v", cfg.TableName),
		Db:             cfg.Db,
		StepWatcher:    cfg.StepWatcher,
		WaitCounter:    cfg.WaitCounter,
		Sqltext:        sqltext,
		PanicHandlerFn: cfg.PanicHandlerFn,
	})
	outputChan, mapperControlChan := components.NewFieldMapper(&components.FieldMapperConfig{
		Log:       cfg.Log,
		Name:      fmt.Sprintf("tag table %v", cfg.TableName),
		InputChan: queryChan,
		Steps: []components.ComponentStep{
			{Type: "AddConstants", Data: map[string]string{
				"fieldType":  "date",
				"fieldName":  c.FieldExtractedAt,
				"fieldValue": cfg.ExtractedAt.Format(time.RFC3339),
			}},
			{Type: "AddConstants", Data: map[string]string{
				"fieldType":  "date",
				"fieldName":  c.FieldBatchedAt,
				"fieldValue": time.Now().UTC().Format(time.RFC3339),
			}},
			{Type: "AddConstants", Data: map[string]string{
				"fieldType":  "string",
				"fieldName":  c.FieldSchemaVersion,
				"fieldValue": c.SchemaVersion,
			}},
		},
		WaitCounter:    cfg.WaitCounter,
		PanicHandlerFn: cfg.PanicHandlerFn,
	})
	// Forward shutdowns to both steps; callers hold one control channel.
	controlChan := make(chan components.ControlAction, 1)
	go func() {
		action, ok := <-controlChan
		if !ok {
			return
		}
		queryControlChan <- components.ControlAction{Action: action.Action, ResponseChan: make(chan error, 1)}
		mapperControlChan <- components.ControlAction{Action: action.Action, ResponseChan: make(chan error, 1)}
		action.ResponseChan <- nil
	}()
	return outputChan, controlChan
}
