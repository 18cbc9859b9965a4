package marts

import (
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/paracelsus/martpipe/components"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
	"github.com/paracelsus/martpipe/table"
)

var DimProvidersColumns = append([]string{
	"provider_key", "provider_id", "npi", "full_name", "provider_type",
	"supervising_physician_id", "hire_date", "email", "phone",
	"state_code", "state_name",
}, scdColumns...)

type DimProvidersConfig struct {
	Log       logger.Logger
	Providers *table.Table
	States    *table.Table
	LoadedAt  time.Time
}

// BuildDimProviders denormalizes the practice state onto each provider and
// assigns provider_key by ascending provider_id.
func BuildDimProviders(cfg *DimProvidersConfig) *table.Table {
	stateKeys := om.NewOrderedMap()
	stateKeys.Set("state_id", "state_id")
	withState, _ := components.NewLookupJoin(&components.LookupJoinConfig{
		Log:          cfg.Log,
		Name:         "join providers to states",
		InputChan:    cfg.Providers.Chan(),
		LookupChan:   cfg.States.Chan(),
		JoinKeys:     stateKeys,
		LookupFields: []string{"state_code", "state_name"},
		JoinType:     components.LeftJoin,
	})
	shaped, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
		Log:       cfg.Log,
		Name:      "shape dim_providers",
		InputChan: withState,
		NormalizeFn: func(rec stream.Record) (stream.Record, []*stream.CastError, error) {
			stampLifecycle(rec, cfg.LoadedAt)
			return rec, nil, nil
		},
	})
	t := table.FromChan("dim_providers", DimProvidersColumns, shaped)
	assignSurrogateKeys(t.Rows, "provider_id", "provider_key")
	return t
}
