// Package models assembles the full DAG: landing readers, staging
// normalizers, the intermediate feeds and the mart builders, registered
// as pipeline nodes in stage order.
package models

import (
	"fmt"
	"time"

	"github.com/paracelsus/martpipe/components"
	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/models/intermediate"
	"github.com/paracelsus/martpipe/models/marts"
	"github.com/paracelsus/martpipe/models/staging"
	"github.com/paracelsus/martpipe/pipeline"
	"github.com/paracelsus/martpipe/rawinput"
	"github.com/paracelsus/martpipe/rdbms"
	"github.com/paracelsus/martpipe/table"
	"github.com/pkg/errors"
)

// Sources binds the assembly to its external inputs for one run.
type Sources struct {
	Log             logger.Logger
	Db              rdbms.Connector
	Files           rawinput.Opener
	ContactsCsvKey  string
	DealsCsvKey     string
	ContactsJsonKey string
	StartDate       time.Time // first day of the daily metrics spine.
	AsOf            time.Time // the run's notion of today.
}

// replicaTable pairs a replica table name with its known column list.
type replicaTable struct {
	name    string
	columns []string
}

// The replica schema is fixed by the upstream extraction layer.
var replicaTables = []replicaTable{
	{"states", []string{"id", "code", "name", "supervision_requirements", "review_frequency_days"}},
	{"physicians", []string{"id", "npi", "first_name", "last_name", "specialty", "state_license_id", "email", "phone"}},
	{"providers", []string{"id", "npi", "first_name", "last_name", "provider_type", "supervising_physician_id", "state_id", "email", "phone", "hire_date"}},
	{"cases", []string{"id", "provider_id", "patient_mrn", "case_type", "status", "priority", "created_at", "closed_at"}},
	{"case_reviews", []string{"id", "case_id", "physician_id", "review_date", "review_status", "notes", "due_date", "completed_at"}},
}

// stagingModels maps each staging normalizer to the raw table feeding it.
var stagingModels = []struct {
	model   staging.Model
	rawName string
}{
	{staging.States, "raw_states"},
	{staging.Physicians, "raw_physicians"},
	{staging.Providers, "raw_providers"},
	{staging.Cases, "raw_cases"},
	{staging.CaseReviews, "raw_case_reviews"},
	{staging.ContactsFile, "raw_contacts_file"},
	{staging.ContactsApi, "raw_contacts_api"},
	{staging.Deals, "raw_deals_file"},
}

// AddNodes registers every model of the DAG on the pipeline.
func AddNodes(p *pipeline.Pipeline, src *Sources) *pipeline.Pipeline {
	for _, rt := range replicaTables {
		p.AddNode(replicaNode(src, rt))
	}
	p.AddNode(csvFileNode(src, "raw_contacts_file", src.ContactsCsvKey))
	p.AddNode(csvFileNode(src, "raw_deals_file", src.DealsCsvKey))
	p.AddNode(contactsApiNode(src))
	for _, sm := range stagingModels {
		p.AddNode(stagingNode(sm.model, sm.rawName))
	}
	p.AddNode(contactsUnionNode())
	p.AddNode(&pipeline.Node{
		Name:   intermediateEnrichedName,
		Stage:  pipeline.StageIntermediate,
		Inputs: []string{"stg_cases", "stg_case_reviews", "stg_providers", "stg_physicians"},
		Build:  buildEnriched(src),
	})
	p.AddNode(&pipeline.Node{
		Name:   intermediateDailyName,
		Stage:  pipeline.StageIntermediate,
		Inputs: []string{intermediateEnrichedName, "stg_providers"},
		Build:  buildDaily(src),
	})
	p.AddNode(&pipeline.Node{
		Name:   "dim_physicians",
		Stage:  pipeline.StageMarts,
		Inputs: []string{"stg_physicians", "stg_states"},
		Build:  buildDimPhysicians(src),
	})
	p.AddNode(&pipeline.Node{
		Name:   "dim_providers",
		Stage:  pipeline.StageMarts,
		Inputs: []string{"stg_providers", "stg_states"},
		Build:  buildDimProviders(src),
	})
	p.AddNode(&pipeline.Node{
		Name:   "fact_daily_review_metrics",
		Stage:  pipeline.StageMarts,
		Inputs: []string{intermediateDailyName, "dim_physicians"},
		Build:  buildFact(src),
	})
	return p
}

const (
	intermediateEnrichedName = "int_case_reviews_enriched"
	intermediateDailyName    = "int_daily_review_metrics"
)

// replicaNode lands one replica table via the SQL reader.
func replicaNode(src *Sources, rt replicaTable) *pipeline.Node {
	name := "raw_" + rt.name
	return &pipeline.Node{
		Name:  name,
		Stage: pipeline.StageLanding,
		Build: func(ctx *pipeline.Context) (*table.Table, error) {
			rows, _ := rawinput.NewTableReader(&rawinput.TableReaderConfig{
				Log:         ctx.Log,
				Db:          src.Db,
				TableName:   rt.name,
				Columns:     rt.columns,
				ExtractedAt: src.AsOf,
				StepWatcher: ctx.Stats.AddStepWatcher(name),
			})
			columns := append(append([]string{}, rt.columns...), c.FieldExtractedAt)
			return table.FromChan(name, columns, rows), nil
		},
	}
}

// csvFileNode lands one flat file from the opener as raw rows.
func csvFileNode(src *Sources, name, key string) *pipeline.Node {
	return &pipeline.Node{
		Name:  name,
		Stage: pipeline.StageLanding,
		Build: func(ctx *pipeline.Context) (*table.Table, error) {
			data, err := src.Files.Get(key)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to read source file %v", key)
			}
			rows, err := rawinput.CsvRecords(ctx.Log, data, key, src.AsOf)
			if err != nil {
				return nil, err
			}
			t := table.New(name, nil)
			for _, rec := range rows {
				t.Append(rec)
			}
			return t, nil
		},
	}
}

// contactsApiNode lands the contact property bags fetched from the API.
func contactsApiNode(src *Sources) *pipeline.Node {
	return &pipeline.Node{
		Name:  "raw_contacts_api",
		Stage: pipeline.StageLanding,
		Build: func(ctx *pipeline.Context) (*table.Table, error) {
			data, err := src.Files.Get(src.ContactsJsonKey)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to read source file %v", src.ContactsJsonKey)
			}
			rows, castErrs, err := rawinput.ContactRecords(ctx.Log, data, src.ContactsJsonKey, src.AsOf)
			if err != nil {
				return nil, err
			}
			for _, ce := range castErrs { // malformed entries are skipped, not fatal...
				ctx.Log.Warn("raw_contacts_api: ", ce.Error())
			}
			t := table.New("raw_contacts_api", nil)
			for _, rec := range rows {
				t.Append(rec)
			}
			return t, nil
		},
	}
}

// stagingNode normalizes one raw table into its staging shape.
func stagingNode(m staging.Model, rawName string) *pipeline.Node {
	return &pipeline.Node{
		Name:   m.Table,
		Stage:  pipeline.StageStaging,
		Inputs: []string{rawName},
		Build: func(ctx *pipeline.Context) (*table.Table, error) {
			raw, err := ctx.Table(rawName)
			if err != nil {
				return nil, err
			}
			normalized, _ := components.NewNormalizeRows(&components.NormalizeRowsConfig{
				Log:         ctx.Log,
				Name:        fmt.Sprintf("normalize %v", m.Table),
				InputChan:   raw.Chan(),
				NormalizeFn: m.Normalize,
				StepWatcher: ctx.Stats.AddStepWatcher(m.Table),
			})
			return table.FromChan(m.Table, m.Columns, normalized), nil
		},
	}
}

// contactsUnionNode stacks the file and API contacts into the one
// stg_contacts relation. Both inputs share the canonical contact columns
// and carry their contact_source discriminator.
func contactsUnionNode() *pipeline.Node {
	return &pipeline.Node{
		Name:   staging.Contacts.Table,
		Stage:  pipeline.StageStaging, // a later wave of the stage, after both inputs.
		Inputs: []string{staging.ContactsFile.Table, staging.ContactsApi.Table},
		Build: func(ctx *pipeline.Context) (*table.Table, error) {
			fromFile, err := ctx.Table(staging.ContactsFile.Table)
			if err != nil {
				return nil, err
			}
			fromApi, err := ctx.Table(staging.ContactsApi.Table)
			if err != nil {
				return nil, err
			}
			combined, _ := components.NewChannelCombiner(&components.ChannelCombinerConfig{
				Log:         ctx.Log,
				Name:        "union contacts",
				Chan1:       fromFile.Chan(),
				Chan2:       fromApi.Chan(),
				StepWatcher: ctx.Stats.AddStepWatcher(staging.Contacts.Table),
			})
			return table.FromChan(staging.Contacts.Table, staging.Contacts.Columns, combined), nil
		},
	}
}

func buildEnriched(src *Sources) pipeline.BuildFunc {
	return func(ctx *pipeline.Context) (*table.Table, error) {
		tables, err := fetchTables(ctx, "stg_cases", "stg_case_reviews", "stg_providers", "stg_physicians")
		if err != nil {
			return nil, err
		}
		return intermediate.BuildCaseReviewsEnriched(&intermediate.CaseReviewsEnrichedConfig{
			Log:         ctx.Log,
			Cases:       tables[0],
			CaseReviews: tables[1],
			Providers:   tables[2],
			Physicians:  tables[3],
			AsOf:        src.AsOf,
		}), nil
	}
}

func buildDaily(src *Sources) pipeline.BuildFunc {
	return func(ctx *pipeline.Context) (*table.Table, error) {
		tables, err := fetchTables(ctx, intermediateEnrichedName, "stg_providers")
		if err != nil {
			return nil, err
		}
		return intermediate.BuildDailyReviewMetrics(&intermediate.DailyReviewMetricsConfig{
			Log:                 ctx.Log,
			CaseReviewsEnriched: tables[0],
			Providers:           tables[1],
			StartDate:           src.StartDate,
			AsOf:                src.AsOf,
		}), nil
	}
}

func buildDimPhysicians(src *Sources) pipeline.BuildFunc {
	return func(ctx *pipeline.Context) (*table.Table, error) {
		tables, err := fetchTables(ctx, "stg_physicians", "stg_states")
		if err != nil {
			return nil, err
		}
		return marts.BuildDimPhysicians(&marts.DimPhysiciansConfig{
			Log: ctx.Log, Physicians: tables[0], States: tables[1], LoadedAt: src.AsOf,
		}), nil
	}
}

func buildDimProviders(src *Sources) pipeline.BuildFunc {
	return func(ctx *pipeline.Context) (*table.Table, error) {
		tables, err := fetchTables(ctx, "stg_providers", "stg_states")
		if err != nil {
			return nil, err
		}
		return marts.BuildDimProviders(&marts.DimProvidersConfig{
			Log: ctx.Log, Providers: tables[0], States: tables[1], LoadedAt: src.AsOf,
		}), nil
	}
}

func buildFact(src *Sources) pipeline.BuildFunc {
	return func(ctx *pipeline.Context) (*table.Table, error) {
		tables, err := fetchTables(ctx, intermediateDailyName, "dim_physicians")
		if err != nil {
			return nil, err
		}
		return marts.BuildFactDailyReviewMetrics(&marts.FactDailyReviewMetricsConfig{
			Log: ctx.Log, DailyMetrics: tables[0], DimPhysicians: tables[1],
		}), nil
	}
}

func fetchTables(ctx *pipeline.Context, names ...string) ([]*table.Table, error) {
	retval := make([]*table.Table, len(names))
	for idx, name := range names {
		t, err := ctx.Table(name)
		if err != nil {
			return nil, err
		}
		retval[idx] = t
	}
	return retval, nil
}
