package rawinput

import (
	"encoding/json"
	"strings"
	"time"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
	"github.com/pkg/errors"
)

// contactEnvelope matches the v3 contacts API response body. A bare JSON
// array of contacts is also accepted.
type contactEnvelope struct {
	Results []json.RawMessage `json:"results"`
}

// ContactRecords parses a contacts API extract into one record per contact.
// The canonical shape is an object with an "id" and a "properties" map;
// flat "property_*" keys from older exports are folded into the same
// property fields. Entries with any other shape raise a CastError and are
// skipped; the rest of the file still lands.
func ContactRecords(log logger.Logger, data []byte, sourceName string, extractedAt time.Time) ([]stream.Record, []*stream.CastError, error) {
	batchedAt := time.Now().UTC()
	var rawContacts []json.RawMessage
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") { // bare array...
		if err := json.Unmarshal(data, &rawContacts); err != nil {
			return nil, nil, errors.Wrapf(err, "unable to parse contacts file %v", sourceName)
		}
	} else {
		var envelope contactEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, nil, errors.Wrapf(err, "unable to parse contacts file %v", sourceName)
		}
		rawContacts = envelope.Results
	}
	records := make([]stream.Record, 0, len(rawContacts))
	castErrs := make([]*stream.CastError, 0)
	for idx, raw := range rawContacts {
		var contact map[string]interface{}
		if err := json.Unmarshal(raw, &contact); err != nil { // entry is not an object...
			castErrs = append(castErrs, &stream.CastError{Field: "contact", Value: string(raw), Want: "object"})
			continue
		}
		rec := stream.NewRecord()
		ok := false
		for key, value := range contact {
			switch {
			case key == "properties": // canonical v3 property map...
				props, isMap := value.(map[string]interface{})
				if !isMap {
					castErrs = append(castErrs, &stream.CastError{Field: "properties", Value: value, Want: "object"})
					continue
				}
				for pk, pv := range props {
					rec.SetData(strings.ToLower(pk), pv)
				}
				ok = true
			case strings.HasPrefix(key, "property_"): // flat legacy keys...
				rec.SetData(strings.ToLower(strings.TrimPrefix(key, "property_")), value)
				ok = true
			default:
				rec.SetData(strings.ToLower(key), value)
			}
		}
		if _, hasID := rec.GetDataOk("id"); !hasID || !ok { // no id or no properties at all...
			castErrs = append(castErrs, &stream.CastError{Field: "contact", Value: string(raw), Want: "contact object"})
			log.Warn("skipping contact entry ", idx, " of ", sourceName, ": not a recognised contact shape")
			continue
		}
		rec.SetData(FieldSourceFile, sourceName)
		rec.SetData(c.FieldExtractedAt, extractedAt)
		rec.SetData(c.FieldBatchedAt, batchedAt)
		rec.SetData(c.FieldSchemaVersion, c.SchemaVersion)
		records = append(records, rec)
	}
	return records, castErrs, nil
}
