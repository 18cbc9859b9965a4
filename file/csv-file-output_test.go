package file

import (
	"compress/gzip"
	"encoding/csv"
	"os"
	"regexp"
	"testing"

	"github.com/paracelsus/martpipe/logger"
)

var header = []string{"physician_key", "workload_status"}

var data = [][]string{
	{"1", "normal"},
	{"2", "warning"},
	{"3", "critical"},
	{"4", "high"}}

func TestCsvFileOutputRotation(t *testing.T) {
	log := logger.NewLogger("csv test", "error", true)
	out := NewCSVFileOutput(log, "", "metrics", "csv", 3, 0, false)
	out.SetHeader(header)
	fileNames := make([]string, 0)
	for _, value := range data {
		fileName := out.MustWriteToCSV(value)
		if fileName != "" { // a non-empty name means a new file was opened.
			fileNames = append(fileNames, fileName)
		}
	}
	out.Cleanup()
	if len(fileNames) != 2 { // 4 rows with maxFileRows 3 should rotate once.
		t.Fatalf("expected 2 output files, got %v", len(fileNames))
	}
	// Read back file 1: header plus the first three rows.
	f1, err := os.Open(fileNames[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f1.Close()
	r1, err := csv.NewReader(f1).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(r1) != 4 {
		t.Fatalf("expected 4 lines in first file, got %v", len(r1))
	}
	if r1[0][0] != header[0] || r1[0][1] != header[1] {
		t.Fatal("read bad header: ", r1[0])
	}
	for idx := 0; idx < 3; idx++ {
		if r1[idx+1][0] != data[idx][0] || r1[idx+1][1] != data[idx][1] {
			t.Fatal("read bad record: ", r1[idx+1])
		}
	}
	// Read back file 2: header plus the final row.
	f2, err := os.Open(fileNames[1])
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	r2, err := csv.NewReader(f2).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(r2) != 2 {
		t.Fatalf("expected 2 lines in second file, got %v", len(r2))
	}
	if r2[0][0] != header[0] {
		t.Fatal("read bad header in second file: ", r2[0])
	}
	if r2[1][0] != data[3][0] || r2[1][1] != data[3][1] {
		t.Fatal("read bad record in second file: ", r2[1])
	}
}

func TestCsvFileOutputGzip(t *testing.T) {
	log := logger.NewLogger("csv test", "error", true)
	out := NewCSVFileOutput(log, "", "metrics", "csv", 0, 0, true)
	out.SetHeader(header)
	var fileName string
	for _, value := range data {
		if name := out.MustWriteToCSV(value); name != "" {
			fileName = name
		}
	}
	out.Cleanup()
	if ok, _ := regexp.MatchString(`.*\.gz$`, fileName); !ok {
		t.Fatal("csv file is missing .gz extension: ", fileName)
	}
	f, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(gz).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != len(data)+1 {
		t.Fatalf("expected %v lines, got %v", len(data)+1, len(recs))
	}
	if recs[0][0] != header[0] || recs[0][1] != header[1] {
		t.Fatal("read bad header from gzipped csv: ", recs[0])
	}
}
