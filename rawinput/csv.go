package rawinput

import (
	"bytes"
	"encoding/csv"
	"strings"
	"time"

	c "github.com/paracelsus/martpipe/constants"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/stream"
	"github.com/pkg/errors"
)

// FieldSourceFile names the landed file on every CSV row.
const FieldSourceFile = "_source_file"

// CsvRecords parses a landed CSV file into records. The first line is the
// header; header names are lower-cased and trimmed. Empty cells become nil
// so they behave as SQL NULL downstream. Every row is tagged with the
// source file name and the provenance fields.
func CsvRecords(log logger.Logger, data []byte, sourceName string, extractedAt time.Time) ([]stream.Record, error) {
	batchedAt := time.Now().UTC()
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are a per-row defect, not a file failure.
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse CSV file %v", sourceName)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("CSV file %v has no header row", sourceName)
	}
	header := make([]string, len(rows[0]))
	for idx, h := range rows[0] {
		header[idx] = strings.ToLower(strings.TrimSpace(h))
	}
	records := make([]stream.Record, 0, len(rows)-1)
	for rowIdx, row := range rows[1:] {
		if len(row) != len(header) { // ragged row...
			log.Warn("skipping row ", rowIdx+2, " of ", sourceName, ": expected ", len(header), " fields, got ", len(row))
			continue
		}
		rec := stream.NewRecord()
		for idx, cell := range row {
			if cell == "" {
				rec.SetData(header[idx], nil)
			} else {
				rec.SetData(header[idx], cell)
			}
		}
		rec.SetData(FieldSourceFile, sourceName)
		rec.SetData(c.FieldExtractedAt, extractedAt)
		rec.SetData(c.FieldBatchedAt, batchedAt)
		rec.SetData(c.FieldSchemaVersion, c.SchemaVersion)
		records = append(records, rec)
	}
	return records, nil
}
