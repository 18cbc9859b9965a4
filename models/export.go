package models

import (
	"github.com/paracelsus/martpipe/components"
	"github.com/paracelsus/martpipe/logger"
	"github.com/paracelsus/martpipe/table"
	"github.com/pkg/errors"
)

// MartTableNames are the tables exported after a successful run, in
// export order.
var MartTableNames = []string{"dim_physicians", "dim_providers", "fact_daily_review_metrics"}

// ExportMarts writes each committed mart table to a CSV file under
// outputDir and returns the file paths written. The export reads the
// committed snapshot, so a concurrent run cannot tear the output.
func ExportMarts(log logger.Logger, store *table.Store, outputDir string) ([]string, error) {
	files := make([]string, 0, len(MartTableNames))
	for _, name := range MartTableNames {
		t, err := store.Get(name)
		if err != nil {
			return files, errors.Wrapf(err, "unable to export mart table %v", name)
		}
		fileChan, _ := components.NewCsvFileWriter(&components.CsvFileWriterConfig{
			Log:                               log,
			Name:                              "export " + name,
			InputChan:                         t.Chan(),
			OutputDir:                         outputDir,
			FileNamePrefix:                    name,
			FileNameSuffixAppendCreationStamp: true,
			FileNameExtension:                 "csv",
			HeaderFields:                      t.Columns,
		})
		for rec := range fileChan { // collect the emitted file names...
			files = append(files, rec.GetDataAsStringUseUtcTime(log, components.Defaults.ChanField4CSVFileName))
		}
	}
	return files, nil
}
