package marts

import (
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/paracelsus/martpipe/components"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

var DimPhysiciansColumns = append([]string{
	"physician_key", "physician_id", "npi", "full_name", "specialty",
	"email", "phone", "state_code", "state_name",
}, scdColumns...)

type DimPhysiciansConfig struct {
	Log        logger.Logger
	Physicians *table.Table
	States     *table.Table
	LoadedAt   time.Time
}

// BuildDimPhysicians denormalizes the licensing state onto each physician
// and assigns physician_key by ascending physician_id. A physician whose
// license points at an unknown state keeps its row with null state fields.
func BuildDimPhysicians(cfg *DimPhysiciansConfig) *table.Table {
	stateKeys := om.NewOrderedMap()
	stateKeys.Set("state_license_id", "state_id")
	withState, _ := components.NewLookupJoin(&components.LookupJoinConfig{
		Log:          cfg.Log,
		Name:         "join physicians to states",
		InputChan:    cfg.Physicians.Chan(),
		LookupChan:   cfg.States.Chan(),
		JoinKeys:     stateKeys,
		LookupFields: []string{"state_code", "state_name"},
		JoinType:     components.LeftJoin,
	})
	shaped, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:       cfg.Log,
		Name:      "shape dim_physicians",
		InputChan: withState,
		NormalizeFn: func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
			stampLifecycle(rec, cfg.LoadedAt)
			return rec, nil, nil
		},
	})
	t := table.FromChan("dim_physicians", DimPhysiciansColumns, shaped)
	assignSurrogateKeys(t.Rows, "physician_id", "physician_key")
	return t
}
